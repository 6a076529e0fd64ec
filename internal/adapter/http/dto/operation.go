package dto

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/possync/internal/domain"
)

// POS clients encode enums as their declaration index. The tables below are
// in declaration order.
var (
	operationTypeTable = []string{
		string(domain.OperationTypeNationalTransfer),
		string(domain.OperationTypeOutboundTransfer),
		string(domain.OperationTypeInboundTransfer),
		string(domain.OperationTypeDeposit),
		string(domain.OperationTypeWithdrawal),
		string(domain.OperationTypeFloatMove),
	}
	paymentChannelTable = []string{
		string(domain.PaymentChannelCash),
		string(domain.PaymentChannelAirtelMoney),
		string(domain.PaymentChannelMPesa),
		string(domain.PaymentChannelOrangeMoney),
	}
	operationStatusTable = []string{
		string(domain.OperationStatusPending),
		string(domain.OperationStatusValidated),
		string(domain.OperationStatusCompleted),
		string(domain.OperationStatusCancelled),
	}
)

// decodeEnum accepts either the wire name or the index into table. An index
// outside the table is kept verbatim so domain validation can reject the item
// without failing the whole request body.
func decodeEnum(data []byte, table []string) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var idx int
	if err := json.Unmarshal(data, &idx); err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(table) {
		return strconv.Itoa(idx), nil
	}
	return table[idx], nil
}

// OperationTypeValue decodes an operation type name or index.
type OperationTypeValue string

func (v *OperationTypeValue) UnmarshalJSON(data []byte) error {
	s, err := decodeEnum(data, operationTypeTable)
	*v = OperationTypeValue(s)
	return err
}

// PaymentChannelValue decodes a payment channel name or index.
type PaymentChannelValue string

func (v *PaymentChannelValue) UnmarshalJSON(data []byte) error {
	s, err := decodeEnum(data, paymentChannelTable)
	*v = PaymentChannelValue(s)
	return err
}

// StatusValue decodes an operation status name or index.
type StatusValue string

func (v *StatusValue) UnmarshalJSON(data []byte) error {
	s, err := decodeEnum(data, operationStatusTable)
	*v = StatusValue(s)
	return err
}

// Timestamp accepts the layouts POS clients send and renders RFC 3339 in UTC.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := domain.ParseTimestamp(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Ptr returns nil for the zero time.
func (t *Timestamp) Ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

func timestampOf(t *time.Time) *Timestamp {
	if t == nil {
		return nil
	}
	return &Timestamp{Time: *t}
}

// OperationPayload is an operation as exchanged with POS clients. The same
// shape is uploaded and served by the feeds.
type OperationPayload struct {
	ID                         int64               `json:"id"`
	BusinessCode               string              `json:"code_ops"`
	Type                       OperationTypeValue  `json:"type"`
	GrossAmount                decimal.Decimal     `json:"montant_brut"`
	NetAmount                  decimal.Decimal     `json:"montant_net"`
	Commission                 decimal.Decimal     `json:"commission"`
	Currency                   string              `json:"devise"`
	ClientID                   *int64              `json:"client_id,omitempty"`
	ClientName                 string              `json:"client_nom,omitempty"`
	SourceShopID               int64               `json:"shop_source_id"`
	SourceShopDesignation      string              `json:"shop_source_designation,omitempty"`
	DestinationShopID          *int64              `json:"shop_destination_id,omitempty"`
	DestinationShopDesignation string              `json:"shop_destination_designation,omitempty"`
	AgentID                    int64               `json:"agent_id"`
	AgentUsername              string              `json:"agent_username,omitempty"`
	RecipientName              string              `json:"destinataire,omitempty"`
	RecipientPhone             string              `json:"telephone_destinataire,omitempty"`
	PaymentChannel             PaymentChannelValue `json:"mode_paiement"`
	Status                     StatusValue         `json:"statut"`
	Reference                  string              `json:"reference,omitempty"`
	Notes                      string              `json:"notes,omitempty"`
	OperationDate              *Timestamp          `json:"date_op,omitempty"`
	ValidatedAt                *Timestamp          `json:"date_validation,omitempty"`
	ValidatedBy                string              `json:"validated_by,omitempty"`
	LastModifiedAt             *Timestamp          `json:"last_modified_at,omitempty"`
	LastModifiedBy             string              `json:"last_modified_by,omitempty"`
	IsSynced                   bool                `json:"is_synced"`
	SyncedAt                   *Timestamp          `json:"synced_at,omitempty"`
	Version                    int64               `json:"version,omitempty"`
}

// ToDomain splits the payload into the operation and the references the
// server has to resolve against its own ids.
func (p *OperationPayload) ToDomain() (*domain.Operation, domain.ReferenceKeys) {
	op := &domain.Operation{
		ID:                p.ID,
		BusinessCode:      p.BusinessCode,
		Type:              domain.OperationType(p.Type),
		GrossAmount:       p.GrossAmount,
		NetAmount:         p.NetAmount,
		Commission:        p.Commission,
		Currency:          p.Currency,
		RecipientName:     p.RecipientName,
		RecipientPhone:    p.RecipientPhone,
		PaymentChannel:    domain.PaymentChannel(p.PaymentChannel),
		Status:            domain.OperationStatus(p.Status),
		Reference:         p.Reference,
		Notes:             p.Notes,
		ValidatedAt:       p.ValidatedAt.Ptr(),
		ValidatedBy:       p.ValidatedBy,
		LastModifiedBy:    p.LastModifiedBy,
		SourceShopID:      p.SourceShopID,
		DestinationShopID: p.DestinationShopID,
		AgentID:           p.AgentID,
		ClientID:          p.ClientID,
		Version:           p.Version,
	}
	if at := p.OperationDate.Ptr(); at != nil {
		op.CreatedAt = *at
	}
	if at := p.LastModifiedAt.Ptr(); at != nil {
		op.LastModifiedAt = *at
	}

	refs := domain.ReferenceKeys{
		ClientName:          p.ClientName,
		AgentUsername:       p.AgentUsername,
		SourceShopName:      p.SourceShopDesignation,
		DestinationShopName: p.DestinationShopDesignation,
		AgentID:             p.AgentID,
		SourceShopID:        p.SourceShopID,
	}
	if p.ClientID != nil {
		refs.ClientID = *p.ClientID
	}
	if p.DestinationShopID != nil {
		refs.DestinationShopID = *p.DestinationShopID
	}

	return op, refs
}

// OperationFromDomain converts a stored operation to its wire form.
func OperationFromDomain(op *domain.Operation) *OperationPayload {
	return &OperationPayload{
		ID:                op.ID,
		BusinessCode:      op.BusinessCode,
		Type:              OperationTypeValue(op.Type),
		GrossAmount:       op.GrossAmount,
		NetAmount:         op.NetAmount,
		Commission:        op.Commission,
		Currency:          op.Currency,
		ClientID:          op.ClientID,
		SourceShopID:      op.SourceShopID,
		DestinationShopID: op.DestinationShopID,
		AgentID:           op.AgentID,
		RecipientName:     op.RecipientName,
		RecipientPhone:    op.RecipientPhone,
		PaymentChannel:    PaymentChannelValue(op.PaymentChannel),
		Status:            StatusValue(op.Status),
		Reference:         op.Reference,
		Notes:             op.Notes,
		OperationDate:     &Timestamp{Time: op.CreatedAt},
		ValidatedAt:       timestampOf(op.ValidatedAt),
		ValidatedBy:       op.ValidatedBy,
		LastModifiedAt:    &Timestamp{Time: op.LastModifiedAt},
		LastModifiedBy:    op.LastModifiedBy,
		IsSynced:          op.IsSynced,
		SyncedAt:          timestampOf(op.SyncedAt),
		Version:           op.Version,
	}
}

// OperationsFromDomain converts a page of operations. A nil input yields an empty list.
func OperationsFromDomain(ops []*domain.Operation) []*OperationPayload {
	result := make([]*OperationPayload, len(ops))
	for i, op := range ops {
		result[i] = OperationFromDomain(op)
	}
	return result
}
