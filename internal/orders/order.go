package orders

import "time"

// Status 是处方订单的生命周期状态。
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusActive    Status = "Active"
	StatusFilled    Status = "Filled"
	StatusCancelled Status = "Cancelled"
)

// Order 是处方订单记录。
type Order struct {
	ID         string    `json:"id" bson:"_id"`
	PatientID  string    `json:"patientId" bson:"patient_id"`
	Prescriber string    `json:"prescriber" bson:"prescriber"`
	Drug       string    `json:"drug" bson:"drug"`
	Dosage     string    `json:"dosage" bson:"dosage"`
	Quantity   int       `json:"quantity" bson:"quantity"`
	Refills    int       `json:"refills" bson:"refills"`
	Status     Status    `json:"status" bson:"status"`
	Notes      string    `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updated_at"`
}

// CreateOrderRequest 是创建订单的请求负载。
type CreateOrderRequest struct {
	PatientID  string `json:"patientId" validate:"required"`
	Prescriber string `json:"prescriber" validate:"required"`
	Drug       string `json:"drug" validate:"required"`
	Dosage     string `json:"dosage" validate:"required"`
	Quantity   int    `json:"quantity" validate:"gte=1"`
	Refills    int    `json:"refills" validate:"gte=1"`
	Notes      string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// UpdateOrderRequest 是更新订单的请求负载。
// 零值字段不更新；Status 只接受既定状态值。
type UpdateOrderRequest struct {
	Dosage   string `json:"dosage,omitempty" validate:"omitempty"`
	Quantity int    `json:"quantity,omitempty" validate:"omitempty,gte=1"`
	Refills  int    `json:"refills,omitempty" validate:"omitempty,gte=1"`
	Status   Status `json:"status,omitempty" validate:"omitempty,oneof=Draft Active Filled Cancelled"`
	Notes    string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// apply 把更新请求合并到订单。
func (r UpdateOrderRequest) apply(o *Order, now time.Time) {
	if r.Dosage != "" {
		o.Dosage = r.Dosage
	}
	if r.Quantity > 0 {
		o.Quantity = r.Quantity
	}
	if r.Refills > 0 {
		o.Refills = r.Refills
	}
	if r.Status != "" {
		o.Status = r.Status
	}
	if r.Notes != "" {
		o.Notes = r.Notes
	}
	o.UpdatedAt = now
}
