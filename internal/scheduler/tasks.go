package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskNewLeadEmail = "leads.email.new_lead"

const TaskLeadReservedEmail = "leads.email.reserved"

const TaskLeadPurchasedEmail = "leads.email.purchased"

type NewLeadEmailPayload struct {
	ToEmail   string `json:"toEmail"`
	LeadID    string `json:"leadId"`
	LeadTitle string `json:"leadTitle"`
	City      string `json:"city,omitempty"`
}

type LeadReservedEmailPayload struct {
	ToEmail   string `json:"toEmail"`
	LeadID    string `json:"leadId"`
	LeadTitle string `json:"leadTitle"`
}

type LeadPurchasedEmailPayload struct {
	ToEmail       string `json:"toEmail"`
	LeadID        string `json:"leadId"`
	LeadTitle     string `json:"leadTitle"`
	TransactionID string `json:"transactionId"`
	AmountCents   int64  `json:"amountCents"`
}

func NewNewLeadEmailTask(payload NewLeadEmailPayload) (*asynq.Task, error) {
	return newTask(TaskNewLeadEmail, payload)
}

func ParseNewLeadEmailPayload(task *asynq.Task) (NewLeadEmailPayload, error) {
	var payload NewLeadEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NewLeadEmailPayload{}, err
	}
	return payload, nil
}

func NewLeadReservedEmailTask(payload LeadReservedEmailPayload) (*asynq.Task, error) {
	return newTask(TaskLeadReservedEmail, payload)
}

func ParseLeadReservedEmailPayload(task *asynq.Task) (LeadReservedEmailPayload, error) {
	var payload LeadReservedEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadReservedEmailPayload{}, err
	}
	return payload, nil
}

func NewLeadPurchasedEmailTask(payload LeadPurchasedEmailPayload) (*asynq.Task, error) {
	return newTask(TaskLeadPurchasedEmail, payload)
}

func ParseLeadPurchasedEmailPayload(task *asynq.Task) (LeadPurchasedEmailPayload, error) {
	var payload LeadPurchasedEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadPurchasedEmailPayload{}, err
	}
	return payload, nil
}

func newTask(typename string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typename, data), nil
}
