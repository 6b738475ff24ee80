package memory

import (
	"testing"

	"clientpulse/testutil"
)

func TestMemoryStoreDoesNotImportServiceLayer(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.ServiceImportForbidden,
		"persistence depends on pkg/domain only")
}
