package internal

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// UpdateDatabase runs freshclam. A failure is logged and returned, callers
// keep scanning with the database they have.
func UpdateDatabase(ctx context.Context, freshclam string, log logrus.FieldLogger) error {
	log.Info("Updating virus database")
	out := runCommand(ctx, freshclam, "--quiet")
	if out.Err != nil {
		log.WithError(out.Err).
			WithField("stderr", strings.TrimSpace(out.Stderr)).
			Error("Virus database update failed, continuing with the current database")
		return fmt.Errorf("update virus database: %w", out.Err)
	}
	log.Info("Virus database updated")
	return nil
}
