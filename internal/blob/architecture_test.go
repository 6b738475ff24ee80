package blob

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestOnlyBlobPackageImportsAWSSDK ensures the AWS SDK stays behind the
// archive abstraction. Other packages must depend on the blob.Store interface
// instead of talking to S3 directly.
func TestOnlyBlobPackageImportsAWSSDK(t *testing.T) {
	const sdkPrefix = "github.com/aws/aws-sdk-go-v2"
	const allowedPkg = "clientpulse/internal/blob"

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "clientpulse/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})

	for _, pkg := range pkgs {
		if strings.HasPrefix(pkg.PkgPath, allowedPkg) {
			continue
		}
		for importPath := range pkg.Imports {
			if importPath == sdkPrefix || strings.HasPrefix(importPath, sdkPrefix+"/") {
				seen[pkg.PkgPath+": "+importPath] = struct{}{}
			}
		}
	}

	if len(seen) > 0 {
		violations := make([]string, 0, len(seen))
		for v := range seen {
			violations = append(violations, v)
		}
		sort.Strings(violations)
		for _, v := range violations {
			t.Errorf("forbidden AWS SDK import: %s", v)
		}
		t.Fatalf("found %d forbidden AWS SDK imports", len(violations))
	}
}
