package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	connectorTypeIDPrefix = "ct_"
	bindingIDPrefix       = "bd_"

	idDigestBytes = 16
)

// ConnectorTypeID derives the stable identifier for a connector type from
// its defining name. The same name always yields the same id.
func ConnectorTypeID(name string) string {
	return contentID(connectorTypeIDPrefix, strings.TrimSpace(name))
}

// BindingID derives the deterministic binding identifier from the ordered
// (account id, connector type id) pair. Re-registering the same pair maps
// to the same id, which is how duplicate registrations are detected.
func BindingID(accountID, connectorTypeID string) string {
	return contentID(bindingIDPrefix, strings.TrimSpace(accountID)+"\x1f"+strings.TrimSpace(connectorTypeID))
}

func contentID(prefix, content string) string {
	sum := sha256.Sum256([]byte(content))
	return prefix + hex.EncodeToString(sum[:idDigestBytes])
}
