package service

import (
	"errors"

	"github.com/LeventeLantos/message-scheduler/internal/model"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrInvalidChannel          = errors.New("invalid channel, use 'email' or 'whatsapp'")
	ErrMissingRecipientAddress = errors.New("contact has no address for this channel")
	ErrPastSchedule            = errors.New("scheduled_at must be in the future")
	ErrInvalidState            = errors.New("only schedules in status AGENDADO can be changed")
	ErrInvalidBody             = errors.New("invalid body")
	ErrDispatchFailure         = errors.New("dispatch failed")
)

// DispatchError carries the adapter's detail for a failed immediate send.
type DispatchError struct {
	Channel model.Channel
	Detail  string
}

func (e *DispatchError) Error() string {
	return "dispatch failed via " + string(e.Channel) + ": " + e.Detail
}

func (e *DispatchError) Unwrap() error {
	return ErrDispatchFailure
}
