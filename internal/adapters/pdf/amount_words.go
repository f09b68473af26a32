package pdf

import (
	"fmt"
	"strconv"
	"strings"
)

var (
	unidades = []string{"", "UN", "DOS", "TRES", "CUATRO", "CINCO", "SEIS", "SIETE", "OCHO", "NUEVE",
		"DIEZ", "ONCE", "DOCE", "TRECE", "CATORCE", "QUINCE", "DIECISÉIS", "DIECISIETE", "DIECIOCHO", "DIECINUEVE",
		"VEINTE", "VEINTIUNO", "VEINTIDÓS", "VEINTITRÉS", "VEINTICUATRO", "VEINTICINCO", "VEINTISÉIS",
		"VEINTISIETE", "VEINTIOCHO", "VEINTINUEVE"}
	decenas  = []string{"", "", "", "TREINTA", "CUARENTA", "CINCUENTA", "SESENTA", "SETENTA", "OCHENTA", "NOVENTA"}
	centenas = []string{"", "CIENTO", "DOSCIENTOS", "TRESCIENTOS", "CUATROCIENTOS", "QUINIENTOS",
		"SEISCIENTOS", "SETECIENTOS", "OCHOCIENTOS", "NOVECIENTOS"}
)

// AmountInWords converts a decimal amount string ("1234.50") into the legal
// Spanish wording the printed representation carries, e.g.
// "MIL DOSCIENTOS TREINTA Y CUATRO PESOS 50/100 M.N.".
func AmountInWords(amount string) string {
	intPart := amount
	cents := "00"
	if i := strings.IndexByte(amount, '.'); i >= 0 {
		intPart = amount[:i]
		cents = amount[i+1:]
		if len(cents) == 1 {
			cents += "0"
		}
		if len(cents) > 2 {
			cents = cents[:2]
		}
	}

	n, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil || n < 0 {
		return amount
	}

	words := "CERO"
	if n > 0 {
		words = strings.TrimSpace(integerInWords(n))
	}

	currency := "PESOS"
	if n == 1 {
		currency = "PESO"
	}
	return fmt.Sprintf("%s %s %s/100 M.N.", words, currency, cents)
}

func integerInWords(n int64) string {
	switch {
	case n >= 1_000_000:
		millions := n / 1_000_000
		rest := n % 1_000_000
		prefix := "UN MILLÓN"
		if millions > 1 {
			prefix = integerInWords(millions) + " MILLONES"
		}
		if rest == 0 {
			return prefix
		}
		return prefix + " " + integerInWords(rest)
	case n >= 1000:
		thousands := n / 1000
		rest := n % 1000
		prefix := "MIL"
		if thousands > 1 {
			prefix = integerInWords(thousands) + " MIL"
		}
		if rest == 0 {
			return prefix
		}
		return prefix + " " + integerInWords(rest)
	case n == 100:
		return "CIEN"
	case n >= 100:
		return centenas[n/100] + " " + integerInWords(n%100)
	case n >= 30:
		if n%10 == 0 {
			return decenas[n/10]
		}
		return decenas[n/10] + " Y " + unidades[n%10]
	default:
		return unidades[n]
	}
}
