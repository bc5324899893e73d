package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	errFieldRequiredFmt = "%s must be set"
	errFieldInvalidFmt  = "%s is invalid (%s %s)"
)

// envNames maps struct field namespaces to the variables users actually set.
var envNames = map[string]string{
	"Config.Server.Port":          "PORT",
	"Config.Database.Host":        "DB_HOST",
	"Config.Database.Password":    "DB_PASSWORD",
	"Config.Database.SSLMode":     "DB_SSL_MODE",
	"Config.Blob.Backend":         "BLOB_BACKEND",
	"Config.Blob.Bucket":          "BLOB_BUCKET",
	"Config.Blob.Region":          "REGION",
	"Config.Blob.Endpoint":        "BLOB_ENDPOINT",
	"Config.Blob.AccessKeyID":     "AWS_ACCESS_KEY_ID",
	"Config.Blob.SecretAccessKey": "AWS_SECRET_ACCESS_KEY",
	"Config.JWT.Secret":           "JWT_SECRET",
	"Config.Purge.BatchSize":      "PURGE_BATCH_SIZE",
	"Config.Log.Level":            "LOG_LEVEL",
	"Config.Log.Format":           "LOG_FORMAT",
}

type messageBuilders struct {
	invalidField func(validator.FieldError) string
}

func newMessageBuilders() messageBuilders {
	return messageBuilders{
		invalidField: func(fe validator.FieldError) string {
			name, ok := envNames[fe.Namespace()]
			if !ok {
				name = fe.Namespace()
			}
			switch fe.Tag() {
			case "required", "required_without", "required_if":
				return fmt.Sprintf(errFieldRequiredFmt, name)
			default:
				return fmt.Sprintf(errFieldInvalidFmt, name, fe.Tag(), fe.Param())
			}
		},
	}
}

var messages = newMessageBuilders()
