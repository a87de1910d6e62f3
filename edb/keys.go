package edb

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// DefaultPrefix namespaces every storage key when no prefix is configured.
const DefaultPrefix = "@edb"

const keySeparator = "_"

// Table names may not contain the separator, otherwise the namespace of table
// "a" would also match entries of table "a_b".
var reValidTable = regexp.MustCompile("^[a-zA-Z0-9-]+$")

// Prefixes follow the same rule, "@" aside, so that a store with prefix "app"
// never sees the records of a store with prefix "app_x".
var reValidPrefix = regexp.MustCompile("^[a-zA-Z0-9@-]+$")

func validatePrefix(prefix string) error {
	if !reValidPrefix.MatchString(prefix) {
		return errors.Errorf("prefix %q contains invalid characters", prefix)
	}
	return nil
}

func validateTable(table string) error {
	if table == "" {
		return errors.Wrap(ErrInvalidTable, "table name is empty")
	}
	if !reValidTable.MatchString(table) {
		return errors.Wrapf(ErrInvalidTable, "%q contains invalid characters", table)
	}
	return nil
}

func validateKey(key string) error {
	if key == "" {
		return errors.Wrap(ErrInvalidKey, "record key is empty")
	}
	return nil
}

// namespace builds storage keys of the form {prefix}_{table}_{key}.
type namespace struct {
	prefix string
}

func (ns namespace) tablePrefix(table string) string {
	return ns.prefix + keySeparator + table + keySeparator
}

func (ns namespace) storageKey(table, key string) string {
	return ns.tablePrefix(table) + key
}

// recordKey extracts the record key from a storage key belonging to table.
func (ns namespace) recordKey(table, storageKey string) (string, bool) {
	p := ns.tablePrefix(table)
	if !strings.HasPrefix(storageKey, p) || len(storageKey) == len(p) {
		return "", false
	}
	return storageKey[len(p):], true
}
