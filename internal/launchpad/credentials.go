package launchpad

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Credentials are an OAuth consumer plus an optional access token, as
// stored by launchpadlib.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

// AnonymousCredentials identifies the application without a user token.
// The service only grants read access to public data with them.
func AnonymousCredentials(consumer string) *Credentials {
	return &Credentials{ConsumerKey: consumer}
}

// Anonymous reports whether no access token is present.
func (c Credentials) Anonymous() bool {
	return c.AccessToken == ""
}

// signature is the PLAINTEXT signature: consumer secret and token secret
// joined by "&", each percent-encoded.
func (c Credentials) signature() string {
	return percentEncode(c.ConsumerSecret) + "&" + percentEncode(c.AccessSecret)
}

// credentialsSection is the INI section launchpadlib writes tokens under.
const credentialsSection = "1"

// ParseCredentials reads launchpadlib's INI credential format:
//
//	[1]
//	consumer_key = openstack-dm
//	consumer_secret =
//	access_token = ...
//	access_secret = ...
func ParseCredentials(r io.Reader) (*Credentials, error) {
	v := viper.New()
	v.SetConfigType("ini")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %s", redactSecrets(err.Error()))
	}

	key := func(name string) string {
		return v.GetString(credentialsSection + "." + name)
	}

	creds := &Credentials{
		ConsumerKey:    key("consumer_key"),
		ConsumerSecret: key("consumer_secret"),
		AccessToken:    key("access_token"),
		AccessSecret:   key("access_secret"),
	}

	if creds.ConsumerKey == "" {
		return nil, fmt.Errorf("credentials missing consumer_key in section [%s]", credentialsSection)
	}
	if creds.AccessToken == "" {
		return nil, fmt.Errorf("credentials missing access_token in section [%s]", credentialsSection)
	}

	return creds, nil
}

// LoadCredentialsFile parses the credential file at path.
func LoadCredentialsFile(path string) (*Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open credentials file: %w", err)
	}
	defer func() { _ = f.Close() }()

	creds, err := ParseCredentials(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return creds, nil
}

// DefaultCredentialsPath returns where credentials are looked up when none
// are configured: ~/.launchpadlib/ci-buglist-credentials.
func DefaultCredentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".launchpadlib", "ci-buglist-credentials"), nil
}

// LoadDefaultCredentials loads the default credential file. It returns
// (nil, nil) when the file does not exist.
func LoadDefaultCredentials() (*Credentials, error) {
	path, err := DefaultCredentialsPath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return LoadCredentialsFile(path)
}
