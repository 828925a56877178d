package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nhle/mailbridge/internal/account"
	"github.com/nhle/mailbridge/internal/credential"
	"github.com/nhle/mailbridge/internal/model"
	"github.com/nhle/mailbridge/internal/provider"
	"github.com/nhle/mailbridge/internal/provider/gmail"
	"github.com/nhle/mailbridge/internal/provider/imapmail"
)

const validateTimeout = 20 * time.Second

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// setupForm collects every field the wizard can ask for; huh binds the
// inputs to these values.
type setupForm struct {
	providerType string
	email        string
	alias        string

	imapHost    string
	imapPort    string
	smtpHost    string
	smtpPort    string
	startTLS    bool
	appPassword string

	clientID     string
	clientSecret string
	refreshToken string
	accessToken  string
}

func runSetup(cmd *cobra.Command, args []string) error {
	cfg, err := model.LoadConfig(configPathFlag)
	if err != nil {
		return err
	}
	// First run: materialize the defaults so they can be edited later.
	if _, statErr := os.Stat(configPathFlag); os.IsNotExist(statErr) {
		if err := model.SaveConfig(configPathFlag, cfg); err != nil {
			return err
		}
	}
	manager, err := buildManager(cfg)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("mailbridge account setup"))

	f := &setupForm{imapPort: "993", smtpPort: "465"}
	if err := typeForm(f).Run(); err != nil {
		return err
	}

	switch f.providerType {
	case string(provider.TypeIMAP):
		if err := imapForm(f).Run(); err != nil {
			return err
		}
	case string(provider.TypeGmail):
		if err := gmailForm(f).Run(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown provider type %q", f.providerType)
	}

	entry, rec := f.build()

	fmt.Println("Validating connection...")
	if err := validateAccount(cmd.Context(), entry, rec); err != nil {
		fmt.Println(errorStyle.Render("Connection failed: " + err.Error()))
		return err
	}

	if err := manager.AddAccount(entry, rec); err != nil {
		return err
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("Account %s added.", entry.Email)))
	return nil
}

func typeForm(f *setupForm) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Provider").
				Description("How mailbridge talks to this mailbox").
				Options(
					huh.NewOption("IMAP/SMTP (any provider, app password)", string(provider.TypeIMAP)),
					huh.NewOption("Gmail API (OAuth2)", string(provider.TypeGmail)),
				).
				Value(&f.providerType),
			huh.NewInput().
				Title("Email address").
				Placeholder("you@example.com").
				Value(&f.email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Alias").
				Description("Optional short name, e.g. \"work\"").
				Value(&f.alias),
		),
	)
}

func imapForm(f *setupForm) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Host").
				Placeholder("imap.example.com").
				Value(&f.imapHost).
				Validate(validateRequired("IMAP host")),
			huh.NewInput().
				Title("IMAP Port").
				Value(&f.imapPort).
				Validate(validatePort),
			huh.NewInput().
				Title("SMTP Host").
				Placeholder("smtp.example.com").
				Value(&f.smtpHost).
				Validate(validateRequired("SMTP host")),
			huh.NewInput().
				Title("SMTP Port").
				Value(&f.smtpPort).
				Validate(validatePort),
			huh.NewConfirm().
				Title("STARTTLS").
				Description("Upgrade plaintext connections instead of implicit TLS").
				Affirmative("Yes").
				Negative("No").
				Value(&f.startTLS),
			huh.NewInput().
				Title("App password").
				EchoMode(huh.EchoModePassword).
				Value(&f.appPassword).
				Validate(validateRequired("App password")),
		),
	)
}

func gmailForm(f *setupForm) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("OAuth client id").
				Value(&f.clientID).
				Validate(validateRequired("Client id")),
			huh.NewInput().
				Title("OAuth client secret").
				EchoMode(huh.EchoModePassword).
				Value(&f.clientSecret).
				Validate(validateRequired("Client secret")),
			huh.NewInput().
				Title("Refresh token").
				Description("From your OAuth consent flow, with the gmail scopes granted").
				EchoMode(huh.EchoModePassword).
				Value(&f.refreshToken).
				Validate(validateRequired("Refresh token")),
			huh.NewInput().
				Title("Access token").
				Description("Optional; refreshed automatically when absent or expired").
				EchoMode(huh.EchoModePassword).
				Value(&f.accessToken),
		),
	)
}

func (f *setupForm) build() (*account.Entry, *credential.Record) {
	entry := &account.Entry{
		Email:    strings.ToLower(strings.TrimSpace(f.email)),
		Alias:    strings.TrimSpace(f.alias),
		Provider: provider.Type(f.providerType),
	}

	switch entry.Provider {
	case provider.TypeIMAP:
		entry.Endpoints = &account.Endpoints{
			IMAPHost: strings.TrimSpace(f.imapHost),
			IMAPPort: strings.TrimSpace(f.imapPort),
			SMTPHost: strings.TrimSpace(f.smtpHost),
			SMTPPort: strings.TrimSpace(f.smtpPort),
			StartTLS: f.startTLS,
		}
		return entry, &credential.Record{AppPassword: f.appPassword}
	default:
		return entry, &credential.Record{OAuth: &credential.OAuthBundle{
			AccessToken:  f.accessToken,
			RefreshToken: f.refreshToken,
			ClientID:     f.clientID,
			ClientSecret: f.clientSecret,
		}}
	}
}

// validateAccount connects to the mailbox and lists folders before the
// entry is persisted, so typos fail here instead of at first tool call.
func validateAccount(ctx context.Context, entry *account.Entry, rec *credential.Record) error {
	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	logger := log.New(io.Discard, "", 0)

	var adapter provider.Mailbox
	switch entry.Provider {
	case provider.TypeIMAP:
		adapter = imapmail.New(entry, rec.AppPassword, logger)
	default:
		adapter = gmail.New(entry, rec.OAuth, 0, logger)
	}
	if closer, ok := adapter.(io.Closer); ok {
		defer closer.Close()
	}

	_, err := adapter.ListFolders(ctx)
	return err
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("email is required")
	}
	at := strings.Index(s, "@")
	if at < 1 || at == len(s)-1 {
		return fmt.Errorf("enter a full email address")
	}
	return nil
}

func validatePort(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("port is required")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return fmt.Errorf("port must be a number")
		}
	}
	return nil
}
