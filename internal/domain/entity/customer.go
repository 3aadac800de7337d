package entity

import "time"

// ConsumidorFinal é o cliente sintético para vendas anónimas.
// NIF 999999999 conforme exigido no ficheiro SAF-T CV.
const (
	ConsumidorFinalID    = "FINAL"
	ConsumidorFinalTaxID = "999999999"
	ConsumidorFinalName  = "Consumidor Final"
)

// Customer é o registo mestre de cliente usado no MasterFiles do SAF-T.
// O documento fiscal guarda o seu próprio snapshot (NIF + nome); este registo
// existe para a tabela de clientes do ficheiro de auditoria.
type Customer struct {
	ID        string
	TaxID     string // NIF, 9 dígitos
	Name      string
	Telephone string
	CreatedAt time.Time
	UpdatedAt time.Time
}
