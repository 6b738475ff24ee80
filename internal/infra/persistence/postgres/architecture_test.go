package postgres

import (
	"testing"

	"clientpulse/testutil"
)

func TestPostgresStoreDoesNotImportServiceLayer(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.ServiceImportForbidden,
		"persistence depends on pkg/domain only")
}
