package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"gremio-backoffice/internal/domain"
	"gremio-backoffice/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads the body into dst and runs the struct tags. Amount fields reject more than
// two decimals while decoding, so those come back as domain errors.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return de
		}
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return &ValidationError{Field: te.Field, Message: fmt.Sprintf("%s has the wrong type", te.Field)}
		}
		if errors.Is(err, io.EOF) {
			return &ValidationError{Field: "body", Message: "request body is required"}
		}
		return &ValidationError{Field: "body", Message: "invalid JSON"}
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "body", Message: err.Error()}
	}
	fe := fieldErrs[0]
	field := fe.Field()
	if parts := strings.SplitN(fe.Namespace(), ".", 2); len(parts) == 2 {
		field = strings.ReplaceAll(parts[1], "ScheduleRequest.", "")
	}
	return &ValidationError{Field: field, Message: fieldMessage(field, fe)}
}

func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "uuid":
		return field + " must be a UUID"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "datetime":
		return field + " must be YYYY-MM-DD"
	case "min":
		return fmt.Sprintf("%s must have at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is not valid (%s)", field, fe.Tag())
	}
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, &ValidationError{Field: name, Message: name + " must be a UUID"}
	}
	return id, nil
}

func optionalUUID(s *string) *uuid.UUID {
	if s == nil || *s == "" {
		return nil
	}
	id := uuid.MustParse(*s)
	return &id
}

// ScheduleRequest is the body of a schedule preview and the schedule part of a new order.
type ScheduleRequest struct {
	Principal    domain.Cents     `json:"principal"`
	Installments int              `json:"installments" validate:"max=600"`
	FirstPeriod  string           `json:"first_period" validate:"required"`
	MonthlyRate  *decimal.Decimal `json:"monthly_rate,omitempty"`
	System       string           `json:"system,omitempty" validate:"omitempty,oneof=none frances"`
	// EnCuotas=false collapses the order into a single installment.
	EnCuotas *bool `json:"en_cuotas,omitempty"`
}

func (req ScheduleRequest) ToInput() domain.ScheduleInput {
	in := domain.ScheduleInput{
		Principal:    req.Principal,
		Installments: req.Installments,
		FirstPeriod:  req.FirstPeriod,
		System:       domain.AmortizationSystem(req.System),
	}
	if req.EnCuotas != nil && !*req.EnCuotas {
		in.Installments = 1
	}
	if req.MonthlyRate != nil {
		in.MonthlyRate = *req.MonthlyRate
	}
	return in
}

type CreateOrderRequest struct {
	ScheduleRequest
	AfiliadoID     string  `json:"afiliado_id" validate:"required,uuid"`
	PadronID       *string `json:"padron_id,omitempty" validate:"omitempty,uuid"`
	ConceptoCodigo string  `json:"concepto_codigo,omitempty" validate:"max=32"`
}

func (req CreateOrderRequest) ToInput() service.CreateOrderInput {
	return service.CreateOrderInput{
		AfiliadoID:     uuid.MustParse(req.AfiliadoID),
		PadronID:       optionalUUID(req.PadronID),
		ConceptoCodigo: req.ConceptoCodigo,
		Schedule:       req.ScheduleRequest.ToInput(),
	}
}

type OpenSessionRequest struct {
	Site string `json:"site" validate:"required,max=64"`
}

type MethodLineRequest struct {
	Method    string       `json:"method" validate:"required,max=32"`
	Amount    domain.Cents `json:"amount"`
	Reference string       `json:"reference,omitempty" validate:"max=128"`
}

type ApplicationRequest struct {
	ObligationID string       `json:"obligation_id" validate:"required,uuid"`
	Amount       domain.Cents `json:"amount"`
}

type CollectionRequest struct {
	AfiliadoID   *string              `json:"afiliado_id,omitempty" validate:"omitempty,uuid"`
	Methods      []MethodLineRequest  `json:"methods" validate:"required,min=1,dive"`
	Applications []ApplicationRequest `json:"applications" validate:"required,min=1,dive"`
}

func (req CollectionRequest) ToInput() service.CollectionInput {
	in := service.CollectionInput{
		AfiliadoID:   optionalUUID(req.AfiliadoID),
		Methods:      make([]domain.MethodLine, 0, len(req.Methods)),
		Applications: make([]domain.Application, 0, len(req.Applications)),
	}
	for _, m := range req.Methods {
		in.Methods = append(in.Methods, domain.MethodLine{
			Method:    domain.NormalizeMethod(m.Method),
			Amount:    m.Amount,
			Reference: strings.TrimSpace(m.Reference),
		})
	}
	for _, a := range req.Applications {
		in.Applications = append(in.Applications, domain.Application{
			ObligationID: uuid.MustParse(a.ObligationID),
			Amount:       a.Amount,
		})
	}
	return in
}

type DeclaredLineRequest struct {
	Method string       `json:"method" validate:"max=32"`
	Amount domain.Cents `json:"amount"`
}

type CloseRequest struct {
	Lines []DeclaredLineRequest `json:"lines" validate:"dive"`
}

func (req CloseRequest) ToDeclared() []service.DeclaredLine {
	out := make([]service.DeclaredLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		out = append(out, service.DeclaredLine{
			Method: domain.NormalizeMethod(l.Method),
			Amount: l.Amount,
		})
	}
	return out
}

type CutoffRequest struct {
	Day int `json:"day"`
}

type NoveltyRequest struct {
	AfiliadoID     string       `json:"afiliado_id" validate:"required,uuid"`
	PadronID       *string      `json:"padron_id,omitempty" validate:"omitempty,uuid"`
	Kind           string       `json:"kind" validate:"required"`
	ConceptoCodigo string       `json:"concepto_codigo" validate:"max=32"`
	Amount         domain.Cents `json:"amount"`
	EventDate      string       `json:"event_date" validate:"required,datetime=2006-01-02"`
}

func (req NoveltyRequest) ToInput() service.NoveltyInput {
	eventDate, _ := time.Parse(dateLayout, req.EventDate)
	return service.NoveltyInput{
		AfiliadoID:     uuid.MustParse(req.AfiliadoID),
		PadronID:       optionalUUID(req.PadronID),
		Kind:           domain.NoveltyKind(strings.ToLower(strings.TrimSpace(req.Kind))),
		ConceptoCodigo: req.ConceptoCodigo,
		Amount:         req.Amount,
		EventDate:      eventDate,
	}
}

type NoveltyReportRequest struct {
	Period string `json:"period" validate:"required"`
}
