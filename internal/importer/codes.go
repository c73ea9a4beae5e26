package importer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/practicehub/practice-server/internal/storage"
)

var clientCodePattern = regexp.MustCompile(`^CL-(\d+)$`)

// NextClientCode derives the next sequential client code from the
// tenant's most recently created client. Codes run CL-001, CL-002, ...
// zero padded to three digits; once past 999 the number just grows.
// A latest code that does not follow the pattern falls back to a
// timestamp suffix so the new code is still unique.
func NextClientCode(ctx context.Context, ts storage.TenantStore) (string, error) {
	latest, err := ts.LatestClient(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return "CL-001", nil
	}
	if err != nil {
		return "", err
	}

	m := clientCodePattern.FindStringSubmatch(latest.ClientCode)
	if m == nil {
		return fmt.Sprintf("CL-%d", time.Now().Unix()), nil
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return fmt.Sprintf("CL-%d", time.Now().Unix()), nil
	}

	return fmt.Sprintf("CL-%03d", n+1), nil
}
