package models

import "time"

// IssuanceRequest is the inbound payload of POST /certificates. It lives only
// for the duration of one issuance.
type IssuanceRequest struct {
	Id    string `json:"id" validate:"required" description:"Unieke sleutel van de ontvanger"`
	Name  string `json:"name" validate:"required" description:"Naam zoals die op het certificaat komt"`
	Grade string `json:"grade" validate:"required" description:"Behaalde beoordeling"`
}

// IssuanceRecord marks the first issuance for an identity. It is written once
// and never updated by the pipeline.
type IssuanceRecord struct {
	Id        string    `gorm:"column:id;primaryKey" dynamodbav:"id" json:"id"`
	Name      string    `gorm:"column:name" dynamodbav:"name" json:"name"`
	Grade     string    `gorm:"column:grade" dynamodbav:"grade" json:"grade"`
	CreatedAt time.Time `gorm:"column:created_at" dynamodbav:"created_at" json:"createdAt"`
}

// IssuanceResponse is returned on a successful issuance.
type IssuanceResponse struct {
	Message string `json:"message"`
	Url     string `json:"url"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
