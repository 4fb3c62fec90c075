package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mfloris/doctran/internal/api"
)

var (
	allowRegistration bool
	emailSuffixes     []string

	smtpHost string
	smtpPort int
	smtpUser string
	smtpPass string
	smtpTLS  bool
	smtpFrom string
	testTo   string

	s3Endpoint  string
	s3AccessKey string
	s3SecretKey string
	s3Bucket    string
	s3Region    string
	s3TTLDays   int
	s3Test      bool

	perfMaxTasks int
	perfThreads  int
	perfInterval int
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage server settings",
	Long: `Inspect and update server settings.

Subcommands:
  system       Registration settings
  email        SMTP settings
  s3           Object storage settings
  performance  Scheduler settings and live queue metrics

Reading happens without flags; passing flags updates the named fields.

Examples:
  doctran admin settings system
  doctran admin settings system --allow-registration=false
  doctran admin settings email --test-to admin@example.com
  doctran admin settings performance --max-tasks 4`,
}

var settingsSystemCmd = &cobra.Command{
	Use:   "system",
	Short: "Show or update registration settings",
	RunE:  runSettingsSystem,
}

var settingsEmailCmd = &cobra.Command{
	Use:   "email",
	Short: "Show or update SMTP settings",
	RunE:  runSettingsEmail,
}

var settingsS3Cmd = &cobra.Command{
	Use:   "s3",
	Short: "Show or update object storage settings",
	RunE:  runSettingsS3,
}

var settingsPerformanceCmd = &cobra.Command{
	Use:   "performance",
	Short: "Show or update scheduler settings",
	RunE:  runSettingsPerformance,
}

func init() {
	settingsSystemCmd.Flags().BoolVar(&allowRegistration, "allow-registration", true, "allow self-registration")
	settingsSystemCmd.Flags().StringSliceVar(&emailSuffixes, "email-suffixes", nil, "allowed email suffixes")

	settingsEmailCmd.Flags().StringVar(&smtpHost, "host", "", "SMTP host")
	settingsEmailCmd.Flags().IntVar(&smtpPort, "port", 0, "SMTP port")
	settingsEmailCmd.Flags().StringVar(&smtpUser, "user", "", "SMTP username")
	settingsEmailCmd.Flags().StringVar(&smtpPass, "password", "", "SMTP password")
	settingsEmailCmd.Flags().BoolVar(&smtpTLS, "tls", true, "use TLS")
	settingsEmailCmd.Flags().StringVar(&smtpFrom, "from", "", "from address")
	settingsEmailCmd.Flags().StringVar(&testTo, "test-to", "", "send a test email to this address")

	settingsS3Cmd.Flags().StringVar(&s3Endpoint, "endpoint", "", "S3 endpoint")
	settingsS3Cmd.Flags().StringVar(&s3AccessKey, "access-key", "", "access key")
	settingsS3Cmd.Flags().StringVar(&s3SecretKey, "secret-key", "", "secret key")
	settingsS3Cmd.Flags().StringVar(&s3Bucket, "bucket", "", "bucket name")
	settingsS3Cmd.Flags().StringVar(&s3Region, "region", "", "region")
	settingsS3Cmd.Flags().IntVar(&s3TTLDays, "ttl-days", 0, "object retention in days")
	settingsS3Cmd.Flags().BoolVar(&s3Test, "test", false, "verify the connection instead of saving")

	settingsPerformanceCmd.Flags().IntVar(&perfMaxTasks, "max-tasks", 0, "max concurrent tasks")
	settingsPerformanceCmd.Flags().IntVar(&perfThreads, "threads", 0, "translation threads per task")
	settingsPerformanceCmd.Flags().IntVar(&perfInterval, "monitor-interval", 0, "queue monitor interval in seconds")

	settingsCmd.AddCommand(settingsSystemCmd)
	settingsCmd.AddCommand(settingsEmailCmd)
	settingsCmd.AddCommand(settingsS3Cmd)
	settingsCmd.AddCommand(settingsPerformanceCmd)
}

func runSettingsSystem(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}
	ctx := context.Background()

	if cmd.Flags().Changed("allow-registration") || cmd.Flags().Changed("email-suffixes") {
		var input api.UpdateSystemSettingsInput
		if cmd.Flags().Changed("allow-registration") {
			input.AllowRegistration = &allowRegistration
		}
		if cmd.Flags().Changed("email-suffixes") {
			input.AllowedEmailSuffixes = emailSuffixes
		}
		if err := apiClient.UpdateSystemSettings(ctx, input); err != nil {
			return fmt.Errorf("update system settings: %w", err)
		}
		fmt.Println("System settings updated.")
		return nil
	}

	settings, err := apiClient.GetSystemSettings(ctx)
	if err != nil {
		return fmt.Errorf("fetch system settings: %w", err)
	}
	fmt.Printf("Allow registration: %t\n", settings.AllowRegistration)
	if len(settings.AllowedEmailSuffixes) > 0 {
		fmt.Printf("Email suffixes:     %s\n", strings.Join(settings.AllowedEmailSuffixes, ", "))
	}
	return nil
}

func runSettingsEmail(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}
	ctx := context.Background()

	if testTo != "" {
		if err := apiClient.SendTestEmail(ctx, testTo); err != nil {
			return fmt.Errorf("send test email: %w", err)
		}
		fmt.Printf("Test email sent to %s\n", testTo)
		return nil
	}

	var input api.UpdateEmailSettingsInput
	changed := false
	if cmd.Flags().Changed("host") {
		input.SMTPHost = &smtpHost
		changed = true
	}
	if cmd.Flags().Changed("port") {
		input.SMTPPort = &smtpPort
		changed = true
	}
	if cmd.Flags().Changed("user") {
		input.SMTPUsername = &smtpUser
		changed = true
	}
	if cmd.Flags().Changed("password") {
		input.SMTPPassword = &smtpPass
		changed = true
	}
	if cmd.Flags().Changed("tls") {
		input.SMTPUseTLS = &smtpTLS
		changed = true
	}
	if cmd.Flags().Changed("from") {
		input.SMTPFromEmail = &smtpFrom
		changed = true
	}

	if changed {
		if err := apiClient.UpdateEmailSettings(ctx, input); err != nil {
			return fmt.Errorf("update email settings: %w", err)
		}
		fmt.Println("Email settings updated.")
		return nil
	}

	settings, err := apiClient.GetEmailSettings(ctx)
	if err != nil {
		return fmt.Errorf("fetch email settings: %w", err)
	}
	fmt.Printf("Host: %s:%d (TLS: %t)\n", settings.SMTPHost, settings.SMTPPort, settings.SMTPUseTLS)
	fmt.Printf("User: %s\n", settings.SMTPUsername)
	fmt.Printf("From: %s\n", settings.SMTPFromEmail)
	return nil
}

func runSettingsS3(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}
	ctx := context.Background()

	changed := cmd.Flags().Changed("endpoint") || cmd.Flags().Changed("access-key") ||
		cmd.Flags().Changed("secret-key") || cmd.Flags().Changed("bucket") ||
		cmd.Flags().Changed("region") || cmd.Flags().Changed("ttl-days")

	if changed || s3Test {
		settings := api.S3Settings{
			Endpoint:  s3Endpoint,
			AccessKey: s3AccessKey,
			SecretKey: s3SecretKey,
			Bucket:    s3Bucket,
			Region:    s3Region,
			TTLDays:   s3TTLDays,
		}
		if s3Test {
			if err := apiClient.TestS3Connection(ctx, settings); err != nil {
				return fmt.Errorf("storage test failed: %w", err)
			}
			fmt.Println("Storage connection OK.")
			return nil
		}
		if err := apiClient.UpdateS3Settings(ctx, settings); err != nil {
			return fmt.Errorf("update storage settings: %w", err)
		}
		fmt.Println("Storage settings updated.")
		return nil
	}

	settings, err := apiClient.GetS3Settings(ctx)
	if err != nil {
		return fmt.Errorf("fetch storage settings: %w", err)
	}
	fmt.Printf("Endpoint: %s\n", settings.Endpoint)
	fmt.Printf("Bucket:   %s (%s)\n", settings.Bucket, settings.Region)
	fmt.Printf("TTL:      %d days\n", settings.TTLDays)
	return nil
}

func runSettingsPerformance(cmd *cobra.Command, args []string) error {
	if err := requireSession(); err != nil {
		return err
	}
	ctx := context.Background()

	var input api.UpdatePerformanceSettingsInput
	changed := false
	if cmd.Flags().Changed("max-tasks") {
		input.MaxConcurrentTasks = &perfMaxTasks
		changed = true
	}
	if cmd.Flags().Changed("threads") {
		input.TranslationThreads = &perfThreads
		changed = true
	}
	if cmd.Flags().Changed("monitor-interval") {
		input.QueueMonitorInterval = &perfInterval
		changed = true
	}

	if changed {
		if err := apiClient.UpdatePerformanceSettings(ctx, input); err != nil {
			return fmt.Errorf("update performance settings: %w", err)
		}
		fmt.Println("Performance settings updated.")
		return nil
	}

	settings, err := apiClient.GetPerformanceSettings(ctx)
	if err != nil {
		return fmt.Errorf("fetch performance settings: %w", err)
	}
	fmt.Printf("Max concurrent tasks:   %d\n", settings.MaxConcurrentTasks)
	fmt.Printf("Translation threads:    %d\n", settings.TranslationThreads)
	fmt.Printf("Queue monitor interval: %ds\n", settings.QueueMonitorInterval)
	return nil
}
