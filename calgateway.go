// Package calgateway answers availability questions and manages events
// across Google Calendar and Microsoft Outlook through one canonical model.
package calgateway

import (
	"github.com/guilherme-santos/calgateway/internal"
	"github.com/guilherme-santos/calgateway/internal/availability"
)

type (
	Calendar       = internal.Calendar
	Event          = internal.Event
	EventPatch     = internal.EventPatch
	EventStatus    = internal.EventStatus
	Attendee       = internal.Attendee
	ResponseStatus = internal.ResponseStatus
	Interval       = internal.Interval
	Credential     = internal.Credential
	AuditRecord    = internal.AuditRecord
	Provider       = internal.Provider
	Error          = internal.Error
	Kind           = internal.Kind

	FreeSlot           = availability.FreeSlot
	WorkingHoursPolicy = availability.WorkingHoursPolicy
	Hours              = availability.Hours
	TimeOfDay          = availability.TimeOfDay
)

const (
	ProviderGoogle    = internal.ProviderGoogle
	ProviderMicrosoft = internal.ProviderMicrosoft
)

var (
	NewInterval = internal.NewInterval
	KindOf      = internal.KindOf
	IsNotFound  = internal.IsNotFound
	IsTransient = internal.IsTransient
)
