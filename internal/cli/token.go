package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/config"
)

func newTokenCommand() *cobra.Command {
	var (
		role      string
		userID    string
		teacherID string
		email     string
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development access token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Env == config.EnvProduction {
				return fmt.Errorf("refusing to issue tokens with ENV=%s", cfg.Env)
			}
			claims := models.JWTClaims{
				UserID:    userID,
				Role:      models.UserRole(strings.ToUpper(role)),
				Email:     email,
				TeacherID: teacherID,
			}
			if !claims.Role.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			if claims.Role == models.RoleTeacher && teacherID == "" {
				return fmt.Errorf("teacher tokens need --teacher")
			}

			tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
			signed, expiresAt, err := tokens.IssueToken(claims, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fromContext(cmd.Context()).logger.Info("token issued",
				zap.String("role", string(claims.Role)),
				zap.Time("expires_at", expiresAt),
			)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), signed)
			return err
		},
	}
	cmd.Flags().StringVar(&role, "role", string(models.RoleScheduler), "role: ADMIN, SCHEDULER or TEACHER")
	cmd.Flags().StringVar(&userID, "user", "dev-user", "user id")
	cmd.Flags().StringVar(&teacherID, "teacher", "", "teacher id for TEACHER tokens")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
