package exchange

import "github.com/alanyoungcy/p2poffer/internal/domain"

// APIPaymentMethod is the wire shape of a payment method. The exchange marks
// user-created methods with a non-empty userId.
type APIPaymentMethod struct {
	ID             string            `json:"id,omitempty"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	ProcessingTime string            `json:"processingTime,omitempty"`
	Instructions   string            `json:"instructions,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	UserID         string            `json:"userId,omitempty"`
	Custom         bool              `json:"isCustom,omitempty"`
}

// ToDomain converts the wire shape.
func (m APIPaymentMethod) ToDomain() domain.PaymentMethod {
	return domain.PaymentMethod{
		ID:             m.ID,
		Name:           m.Name,
		Description:    m.Description,
		ProcessingTime: m.ProcessingTime,
		Instructions:   m.Instructions,
		Details:        m.Metadata,
		Custom:         m.Custom || m.UserID != "",
	}
}

// FromDomain builds the request body for a payment method.
func FromDomain(pm domain.PaymentMethod) APIPaymentMethod {
	return APIPaymentMethod{
		ID:             pm.ID,
		Name:           pm.Name,
		Description:    pm.Description,
		ProcessingTime: pm.ProcessingTime,
		Instructions:   pm.Instructions,
		Metadata:       pm.Details,
		Custom:         pm.Custom,
	}
}
