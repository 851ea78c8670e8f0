package logging

// truncatedIDLength is how many leading characters of an identifier appear in logs.
const truncatedIDLength = 8

// TruncateSessionID shortens a session ID for log output so full session
// identifiers never appear in logs.
func TruncateSessionID(sessionID string) string {
	return TruncateKey(sessionID)
}

// TruncateKey shortens an identifier (identity key, state, connection ID) for log output.
func TruncateKey(key string) string {
	if len(key) <= truncatedIDLength {
		return key
	}
	return key[:truncatedIDLength] + "..."
}
