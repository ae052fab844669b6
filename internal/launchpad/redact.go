package launchpad

import "regexp"

// secretPattern matches OAuth and launchpadlib credential fields in
// "key = value", "key: value" and `key="value"` form.
var secretPattern = regexp.MustCompile(`(?i)(oauth_token|oauth_signature|access_token|access_secret|consumer_secret)(\s*[:=]\s*"?)([^"\s,&]+)`)

// redactSecrets masks credential values in s, keeping the key for context.
func redactSecrets(s string) string {
	return secretPattern.ReplaceAllString(s, "${1}${2}***REDACTED***")
}
