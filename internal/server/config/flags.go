package config

import (
	"flag"
	"os"
	"time"

	"github.com/dkrasnov/accountd/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-r string   redis address for the token ledger (empty selects in-process)
//	-t int      ephemeral token validity, minutes
//	-v int      session certificate validity, minutes
//	-k string   path to the EdDSA signing key file
//	-b string   public base URL used in emailed links
//	-m string   SMTP relay host (empty disables mail delivery)
//	-p int      SMTP relay port
//	-u string   SMTP user
//	-w string   SMTP password
//	-f string   From address for outgoing mail
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers in minutes and then converted
//     to time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-r", "-t", "-v", "-k", "-b", "-m", "-p", "-u", "-w", "-f"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address for the token ledger")

	tokenValidityDuration := fs.Int("t", int(config.TokenValidityDuration.Minutes()), "token_validity_duration (in minutes)")
	certValidityDuration := fs.Int("v", int(config.CertValidityDuration.Minutes()), "cert_validity_duration (in minutes)")

	fs.StringVar(&config.SigningKeyPath, "k", config.SigningKeyPath, "signing key file path")
	fs.StringVar(&config.BaseURL, "b", config.BaseURL, "public base URL")
	fs.StringVar(&config.SMTPRelay, "m", config.SMTPRelay, "SMTP relay host")
	fs.IntVar(&config.SMTPPort, "p", config.SMTPPort, "SMTP relay port")
	fs.StringVar(&config.SMTPUser, "u", config.SMTPUser, "SMTP user")
	fs.StringVar(&config.SMTPPassword, "w", config.SMTPPassword, "SMTP password")
	fs.StringVar(&config.SMTPFrom, "f", config.SMTPFrom, "From address for outgoing mail")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidityDuration = time.Duration(*tokenValidityDuration) * time.Minute
	config.CertValidityDuration = time.Duration(*certValidityDuration) * time.Minute
}
