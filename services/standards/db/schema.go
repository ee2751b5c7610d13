package db

import _ "embed"

//go:embed schema.sql
var Schema string

type Status string

const (
	STATUS_PENDING Status = "pending"
	STATUS_SUCCESS Status = "success"
	STATUS_FAILED  Status = "failed"
)
