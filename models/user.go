package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Username     string             `bson:"username" json:"username"`
	Name         string             `bson:"name" json:"name"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         string             `bson:"role" json:"role"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
}

type RegisterInput struct {
	Username string `json:"username" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// Session is the server-side half of a login; a token whose session is gone is rejected.
type Session struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    string             `bson:"user_id" json:"userId"`
	Username  string             `bson:"username" json:"username"`
	Role      string             `bson:"role" json:"role"`
	IP        string             `bson:"ip" json:"ip"`
	Device    string             `bson:"device" json:"device"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	ExpiresAt time.Time          `bson:"expires_at" json:"expiresAt"`
}

type Customer struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	OwnerID   string             `bson:"owner_id" json:"ownerId"`
	Name      string             `bson:"name" json:"name" binding:"required"`
	Address   string             `bson:"address,omitempty" json:"address,omitempty"`
	City      string             `bson:"city,omitempty" json:"city,omitempty"`
	Contact   string             `bson:"contact,omitempty" json:"contact,omitempty"`
	Email     string             `bson:"email,omitempty" json:"email,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
}

type LogStream string

const (
	StreamAudit    LogStream = "audit_trail"
	StreamActivity LogStream = "activity_logs"
)

// LogEntry is an append-only audit or activity record.
type LogEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string             `bson:"user_id" json:"userId"`
	UserName  string             `bson:"user_name" json:"userName"`
	Action    string             `bson:"action" json:"action"`
	Subject   string             `bson:"subject,omitempty" json:"subject,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// Actor identifies who performs an operation.
type Actor struct {
	UserID   string
	UserName string
	Role     string
	OwnerID  string
}
