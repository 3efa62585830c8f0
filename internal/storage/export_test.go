package storage

var BuildMatchExpressionForTest = buildMatchExpression
