// Package kss provides storage for large files outside of the database, like
// profile images. Clients up- and download the files directly with
// pre-signed URLs. There are currently two backends: a local file system and AWS S3.
package kss

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/workfit/core/logger"
)

// Method is a http method a pre-signed URL is valid for
type Method string

// supported pre-signed methods
const (
	Get Method = "GET"
	Put Method = "PUT"
)

// Driver defines the interface for the KSS service
type Driver interface {
	GetPreSignedURL(ctx context.Context, method Method, key string, expireIn time.Duration) (URL string, err error)
	Delete(ctx context.Context, key string) error
}

// DriverType represents the different type of KSS Drivers
type DriverType string

// DriverTypeLocal is the local filesystem implementation of the KSS service
const DriverTypeLocal DriverType = "Local"

// DriverTypeAWSS3 is the AWS S3 implementation of the KSS service
const DriverTypeAWSS3 DriverType = "AWSS3"

// None is used when there is no KSS implementation
const None DriverType = ""

// Configuration contains the configuration for the KSS service
type Configuration struct {
	DriverType         DriverType
	LocalConfiguration *LocalConfiguration
	S3Configuration    *S3Configuration
}

// LocalConfiguration contains the configuration for the local filesystem KSS service
type LocalConfiguration struct {
	BasePath string
	// PublicURL is the externally visible base URL of the service, used for pre-signed URLs
	PublicURL string
}

// S3Configuration contains the configuration for the S3 KSS service
type S3Configuration struct {
	AWSRegion     string
	AWSBucketName string
	AccessID      string
	AccessKey     string
	KeyPrefix     string
}

// New creates the driver selected by the configuration. It returns a nil driver
// for DriverType None. The local filesystem driver adds its route to the router.
func New(config Configuration, router *mux.Router) (Driver, error) {
	switch config.DriverType {
	case None:
		logger.Default().Info("KSS not in use")
		return nil, nil
	case DriverTypeLocal:
		if config.LocalConfiguration == nil {
			return nil, fmt.Errorf("kss expecting a configuration for local KSS, but got nothing")
		}
		u, err := url.Parse(config.LocalConfiguration.PublicURL)
		if err != nil {
			return nil, fmt.Errorf("cannot parse url %s %w", config.LocalConfiguration.PublicURL, err)
		}
		logger.Default().Info("KSS in use with driver ", config.DriverType)
		return NewLocalFilesystem(router, config.LocalConfiguration.BasePath, *u, nil)
	case DriverTypeAWSS3:
		if config.S3Configuration == nil {
			return nil, fmt.Errorf("kss expecting a configuration for S3 KSS, but got nothing")
		}
		logger.Default().Info("KSS in use with driver ", config.DriverType)
		return NewS3(*config.S3Configuration)
	default:
		return nil, fmt.Errorf("unknown kss driver type '%s'", config.DriverType)
	}
}
