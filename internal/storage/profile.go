package storage

import (
	"github.com/enonic-cloud/docker-duply/internal/config"
)

// DefaultSegmentSize is used when no positive segment size is configured
const DefaultSegmentSize int64 = 1024 * 1024 * 1024

const defaultAuthVersion = "1"

// Profile is the resolved connection profile for a Swift session. It is
// built once by NewProfile and not modified afterwards.
type Profile struct {
	PreAuthURL   string
	PreAuthToken string

	Username string
	Password string
	AuthURL  string

	AuthVersion string

	UserDomainName    string
	UserDomainID      string
	ProjectDomainName string
	ProjectDomainID   string
	TenantName        string
	TenantID          string
	EndpointType      string
	UserID            string
	RegionName        string

	SegmentSize int64
	UseSLO      bool
}

// Preauthenticated reports whether the profile carries a storage URL and
// token, in which case no identity service is contacted.
func (p Profile) Preauthenticated() bool {
	return p.PreAuthURL != "" && p.PreAuthToken != ""
}

// NewProfile resolves the raw settings into a Profile. It fails with a
// *ConfigurationError naming the first missing credential and never
// touches the network.
func NewProfile(cfg config.SwiftConfig) (Profile, error) {
	var p Profile

	if cfg.PreAuthURL != "" && cfg.PreAuthToken != "" {
		p.PreAuthURL = cfg.PreAuthURL
		p.PreAuthToken = cfg.PreAuthToken
	} else {
		if cfg.Username == "" {
			return Profile{}, &ConfigurationError{Field: "SWIFT_USERNAME"}
		}
		if cfg.Password == "" {
			return Profile{}, &ConfigurationError{Field: "SWIFT_PASSWORD"}
		}
		if cfg.AuthURL == "" {
			return Profile{}, &ConfigurationError{Field: "SWIFT_AUTHURL"}
		}
		p.Username = cfg.Username
		p.Password = cfg.Password
		p.AuthURL = cfg.AuthURL
	}

	p.SegmentSize = DefaultSegmentSize
	if cfg.SegmentSize > 0 {
		p.SegmentSize = cfg.SegmentSize
	}
	p.UseSLO = true

	p.AuthVersion = defaultAuthVersion
	if cfg.AuthVersion != "" {
		p.AuthVersion = cfg.AuthVersion
	}

	if p.AuthVersion == "3" {
		p.UserDomainName = cfg.UserDomainName
		p.UserDomainID = cfg.UserDomainID
		p.ProjectDomainName = cfg.ProjectDomainName
		p.ProjectDomainID = cfg.ProjectDomainID
		p.EndpointType = cfg.EndpointType
		p.UserID = cfg.UserID
		p.TenantID = cfg.TenantID
	}
	// tenant and region apply to every auth version
	p.TenantName = cfg.TenantName
	p.RegionName = cfg.RegionName

	return p, nil
}
