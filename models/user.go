package models

import (
	"time"
)

// SubscriptionType — тарифный план пользователя.
type SubscriptionType string

const (
	SubscriptionFree    SubscriptionType = "free"
	SubscriptionStarter SubscriptionType = "starter"
	SubscriptionBasic   SubscriptionType = "basic"
	SubscriptionPremium SubscriptionType = "premium"
)

// BotLimits — максимум ботов на тариф.
var BotLimits = map[SubscriptionType]int{
	SubscriptionFree:    1,
	SubscriptionStarter: 3,
	SubscriptionBasic:   10,
	SubscriptionPremium: 50,
}

// MessageLimits — лимит сообщений в месяц на тариф.
var MessageLimits = map[SubscriptionType]int{
	SubscriptionFree:    100,
	SubscriptionStarter: 1000,
	SubscriptionBasic:   10000,
	SubscriptionPremium: 100000,
}

// User представляет собой пользователя платформы (владельца ботов).
type User struct {
	ID             int64  `json:"id"`
	Email          string `json:"email"`
	Username       string `json:"username"`
	HashedPassword string `json:"-"`
	FullName       string `json:"fullName,omitempty"`
	Phone          string `json:"phone,omitempty"`

	SubscriptionType      SubscriptionType `json:"subscriptionType"`
	SubscriptionExpiresAt *time.Time       `json:"subscriptionExpiresAt,omitempty"`
	MessagesThisMonth     int              `json:"messagesThisMonth"`
	MessagesResetAt       *time.Time       `json:"messagesResetAt,omitempty"`

	IsActive bool `json:"isActive"`
	IsAdmin  bool `json:"isAdmin"`

	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// BotLimit возвращает лимит ботов для текущего тарифа.
func (u *User) BotLimit() int {
	if n, ok := BotLimits[u.SubscriptionType]; ok {
		return n
	}
	return 1
}

// MessageLimit возвращает месячный лимит сообщений для текущего тарифа.
func (u *User) MessageLimit() int {
	if n, ok := MessageLimits[u.SubscriptionType]; ok {
		return n
	}
	return 100
}

// IsSubscriptionActive: free всегда активен, платные — до истечения срока.
func (u *User) IsSubscriptionActive() bool {
	if u.SubscriptionType == SubscriptionFree {
		return true
	}
	if u.SubscriptionExpiresAt == nil {
		return false
	}
	return u.SubscriptionExpiresAt.After(time.Now().UTC())
}

// CanSendMessage проверяет месячную квоту сообщений.
func (u *User) CanSendMessage() bool {
	return u.MessagesThisMonth < u.MessageLimit()
}
