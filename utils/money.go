package utils

import "github.com/shopspring/decimal"

// RoundMoney rounds half away from zero to cents.
func RoundMoney(value float64) float64 {
	return decimal.NewFromFloat(value).Round(2).InexactFloat64()
}

// LineAmount is quantity × price, exact to the cent.
func LineAmount(quantity int, price float64) decimal.Decimal {
	return decimal.NewFromInt(int64(quantity)).Mul(decimal.NewFromFloat(price))
}

// SumMoney adds amounts without float drift and rounds the result to cents.
func SumMoney(amounts ...decimal.Decimal) float64 {
	return decimal.Sum(decimal.Zero, amounts...).Round(2).InexactFloat64()
}
