package efatura

import (
	"fmt"
	"strings"
)

// ValidateNIF valida o Número de Identificação Fiscal cabo-verdiano:
// exatamente 9 dígitos numéricos. Aceita pontos e hífens de formatação.
func ValidateNIF(nif string) error {
	digits := extractDigits(nif)
	if len(digits) != 9 {
		return fmt.Errorf("efatura: NIF deve ter exatamente 9 dígitos numéricos, recebidos %d", len(digits))
	}
	return nil
}

// extractDigits remove formatação e devolve apenas os dígitos.
func extractDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
