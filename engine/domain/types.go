// Package domain defines the form types accepted by the POCHINI API and the
// validation gate every handler passes them through before a model is called.
package domain

import (
	"fmt"
	"strings"
)

// Vehicle is a validated vehicle description.
type Vehicle struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year,omitempty"`
}

// Details renders the vehicle the way prompts expect it: "Make Model Year".
func (v Vehicle) Details() string {
	parts := []string{v.Make, v.Model}
	if v.Year > 0 {
		parts = append(parts, fmt.Sprintf("%d", v.Year))
	}
	return strings.Join(parts, " ")
}

// SymptomForm is the raw symptom checker submission. Year stays a string
// because it arrives from a text input.
type SymptomForm struct {
	Make     string `json:"make"`
	Model    string `json:"model"`
	Year     string `json:"year"`
	Symptoms string `json:"symptoms"`
}

// MaintenanceForm is the raw maintenance advisor submission.
type MaintenanceForm struct {
	Make  string `json:"make"`
	Model string `json:"model"`
}

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// ChatTurn is one message of the chat widget history.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatForm is a single chat widget submission.
type ChatForm struct {
	Message string     `json:"message"`
	History []ChatTurn `json:"history,omitempty"`
}
