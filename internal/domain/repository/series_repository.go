package repository

import "context"

// SeriesRepository aloca números sequenciais por (série, ano).
//
// AllocateNext devolve o próximo número estritamente positivo dentro de uma
// secção crítica serializada (lock de linha na transação). Dois chamadores
// concorrentes para a mesma (série, ano) nunca recebem o mesmo número nem
// saltam números. "Ler o máximo e gravar máximo+1" sem lock é proibido.
type SeriesRepository interface {
	AllocateNext(ctx context.Context, series string, year int) (int64, error)
}
