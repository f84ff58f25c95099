package domain

import "math/rand"

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 8
)

// GenerateCode возвращает 8-символьный код заказа из алфавита A-Z0-9.
// Символы выбираются равномерно и независимо; глобальная уникальность
// не гарантируется и не проверяется — вероятность коллизии на рабочих
// объёмах принята пренебрежимой.
func GenerateCode() string {
	buf := make([]byte, codeLength)
	for i := range buf {
		buf[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(buf)
}
