package testutil

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/genkit"
)

// SetupGenkit initializes a plugin-free Genkit instance for tests that
// register mock models or embedders.
func SetupGenkit(t *testing.T) *genkit.Genkit {
	t.Helper()
	return genkit.Init(context.Background())
}
