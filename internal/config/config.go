// Package config loads the AppView configuration from the environment.
// All external-service URLs, key material, and worker tuning live here so
// handlers and workers receive a typed value instead of reading os.Getenv
// at call sites.
package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ReviewCriterion is one entry of the configurable peer-review rubric.
type ReviewCriterion struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// defaultReviewCriteria matches the rubric shipped with the frontend.
var defaultReviewCriteria = []ReviewCriterion{
	{Key: "factual_accuracy", Label: "Factual Accuracy"},
	{Key: "relevance", Label: "Relevance to Ballot"},
	{Key: "clarity", Label: "Clarity"},
	{Key: "unity_of_thought", Label: "Unity of Thought"},
	{Key: "non_duplication", Label: "Non-Duplication"},
}

// Config carries all runtime configuration for the AppView process.
type Config struct {
	DBURL    string
	HTTPAddr string

	// PDS access. AdminPassword authenticates admin endpoints reached via
	// the internal non-TLS URL; user sessions go through the public host.
	AdminPassword  string
	PDSInternalURL string
	PDSHostname    string
	PDSHandleBase  string // domain suffix for generated user handles

	DirectoryURL  string
	RelayURL      string
	UpstreamURL   string // upstream Bluesky-style AppView
	ModerationURL string // Ozone-style moderation service

	// Key material. MasterKey encrypts stored app-passwords, SigningSeed
	// derives the Ed25519 attestation key.
	MasterKey   [32]byte
	SigningSeed []byte

	GovernanceDID      string
	GovernancePassword string

	ServerDID   string // this service's DID, used in did.json and the feed descriptor
	FrontendURL string

	CrosspostEnabled       bool
	CrosspostPollInterval  time.Duration
	PeerReviewEnabled      bool
	PeerReviewPollInterval time.Duration
	PeerReviewQuorum       int
	InviteProbability      float64
	ReviewCriteria         []ReviewCriterion

	MaxAccounts        int
	AppPasswordEnabled bool

	ProfileBioTemplate string
	AllowOrigins       []string

	SMTPAddr string
	SMTPFrom string
	SMTPUser string
	SMTPPass string

	Production bool
}

// String redacts secrets so a Config can be logged safely.
func (c *Config) String() string {
	return fmt.Sprintf("Config{pds=%s directory=%s relay=%s upstream=%s governance=%s}",
		c.PDSHostname, c.DirectoryURL, c.RelayURL, c.UpstreamURL, c.GovernanceDID)
}

// Load reads configuration from the environment. Malformed key material is
// a hard error: running with a wrong-size master key would silently produce
// undecryptable credentials.
func Load() (*Config, error) {
	cfg := &Config{
		DBURL:          os.Getenv("DB_URL"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":3000"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		PDSInternalURL: getEnv("PDS_INTERNAL_URL", "http://localhost:3001"),
		PDSHostname:    os.Getenv("PDS_HOSTNAME"),
		PDSHandleBase:  os.Getenv("PDS_PUBLIC_HANDLE"),
		DirectoryURL:   getEnv("DIRECTORY_URL", "https://plc.directory"),
		RelayURL:       getEnv("RELAY_URL", "https://bsky.network"),
		UpstreamURL:    getEnv("UPSTREAM_APPVIEW_URL", "https://api.bsky.app"),
		ModerationURL:  os.Getenv("MODERATION_URL"),

		GovernanceDID:      os.Getenv("GOVERNANCE_DID"),
		GovernancePassword: os.Getenv("GOVERNANCE_PASSWORD"),

		ServerDID:   os.Getenv("FEED_GENERATOR_DID"),
		FrontendURL: getEnv("FRONTEND_URL", "https://poltr.ch"),

		CrosspostEnabled:       getEnvBool("CROSSPOST_ENABLED"),
		CrosspostPollInterval:  getEnvSeconds("CROSSPOST_POLL_INTERVAL_SECONDS", 30),
		PeerReviewEnabled:      getEnvBool("PEER_REVIEW_ENABLED"),
		PeerReviewPollInterval: getEnvSeconds("PEER_REVIEW_POLL_INTERVAL_SECONDS", 60),
		PeerReviewQuorum:       getEnvInt("PEER_REVIEW_QUORUM", 10),
		InviteProbability:      getEnvFloat("PEER_REVIEW_INVITE_PROBABILITY", 0.35),

		MaxAccounts:        getEnvInt("MAX_ACCOUNTS", 0),
		AppPasswordEnabled: getEnvBool("APP_PASSWORD_ENABLED"),

		ProfileBioTemplate: getEnv("PROFILE_BIO_TEMPLATE",
			"{{.MountainFullname}} ({{.Canton}}, {{printf \"%.0f\" .Height}} m)"),

		SMTPAddr: os.Getenv("SMTP_ADDR"),
		SMTPFrom: os.Getenv("SMTP_FROM"),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),

		Production: os.Getenv("ENVIRONMENT") == "production",
	}

	if origins := os.Getenv("APP_ALLOW_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowOrigins = append(cfg.AllowOrigins, o)
			}
		}
	}

	masterKey, err := decodeKey("MASTER_KEY_B64", 32)
	if err != nil {
		return nil, err
	}
	copy(cfg.MasterKey[:], masterKey)

	cfg.SigningSeed, err = decodeKey("SIGNING_KEY_SEED_B64", 32)
	if err != nil {
		return nil, err
	}

	if raw := os.Getenv("PEER_REVIEW_CRITERIA"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.ReviewCriteria); err != nil {
			return nil, fmt.Errorf("invalid PEER_REVIEW_CRITERIA: %w", err)
		}
	} else {
		cfg.ReviewCriteria = defaultReviewCriteria
	}

	return cfg, nil
}

// decodeKey reads a base64 environment variable and enforces an exact
// decoded length.
func decodeKey(name string, size int) ([]byte, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return nil, fmt.Errorf("%s is not set", name)
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s is not valid base64: %w", name, err)
	}
	if len(key) != size {
		return nil, fmt.Errorf("%s must decode to %d bytes, got %d", name, size, len(key))
	}
	return key, nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(name string) bool {
	return strings.EqualFold(os.Getenv(name), "true")
}

func getEnvInt(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(name string, fallback float64) float64 {
	if v := os.Getenv(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvSeconds(name string, fallback int) time.Duration {
	return time.Duration(getEnvInt(name, fallback)) * time.Second
}
