package domain

import (
	"time"

	"github.com/google/uuid"
)

// NoveltyKind is the payroll notice type sent to the employer's payroll system.
type NoveltyKind string

const (
	NoveltyAlta         NoveltyKind = "alta"
	NoveltyBaja         NoveltyKind = "baja"
	NoveltyModificacion NoveltyKind = "modificacion"
)

func (k NoveltyKind) Validate() error {
	switch k {
	case NoveltyAlta, NoveltyBaja, NoveltyModificacion:
		return nil
	}
	return ErrInvalidNoveltyKind.Withf("novelty kind %q must be alta, baja or modificacion", k)
}

// Novelty (novedad) is one payroll-deduction notice line.
type Novelty struct {
	ID             uuid.UUID   `json:"id"`
	TenantID       TenantID    `json:"tenant_id"`
	AfiliadoID     uuid.UUID   `json:"afiliado_id"`
	PadronID       *uuid.UUID  `json:"padron_id"`
	Kind           NoveltyKind `json:"kind"`
	ConceptoCodigo string      `json:"concepto_codigo"`
	Amount         Cents       `json:"amount"`
	EventDate      time.Time   `json:"event_date"`
	Period         Period      `json:"period"`
	CreatedAt      time.Time   `json:"created_at"`
}
