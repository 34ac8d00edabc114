package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"slidecoffee/internal/infra/config"
)

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "--help", "-h", "help":
		showUsage()
		return
	case "serve":
		err = runServe()
	case "generate":
		err = runGenerate(os.Args[2:])
	case "doctor":
		err = runDoctor()
	case "encrypt":
		err = runEncrypt(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'slidecoffee --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
	if errors.Is(err, errReported) {
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`slidecoffee - AI presentation generator

USAGE:
    slidecoffee COMMAND [FLAGS]

COMMANDS:
    serve       Run the generation server
    generate    Generate a presentation and follow its progress
    doctor      Run health checks on your setup
    encrypt     Encrypt a secret for use in config.yaml

GENERATE FLAGS:
    --topic TEXT       Presentation topic (or pass it as arguments)
    --plan FILE        JSON presentation plan to build from
    --project ID       Project to file the presentation under
    --brand ID         Brand to apply
    --no-research      Skip web research
    --plain            Print one line per event instead of the live view
    --json             Print the result as JSON

GLOBAL FLAGS:
    -h, --help         Show this help message
    --config PATH      Specify config file path (default: ./config.yaml)

CONFIGURATION:
    Config file: ./config.yaml
    Environment: SLIDECOFFEE_* variables override config
    Secrets:     values starting with enc: are decrypted with SLIDECOFFEE_CONFIG_KEY

EXAMPLES:
    slidecoffee serve
    slidecoffee generate "The history of espresso"
    slidecoffee generate --plan plan.json --no-research
    SLIDECOFFEE_CONFIG_KEY=... slidecoffee encrypt sk-...`)
}

func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("SLIDECOFFEE_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

// runEncrypt prints the enc: form of a secret. The value is read from
// stdin when not given as an argument.
func runEncrypt(args []string) error {
	passphrase := os.Getenv("SLIDECOFFEE_CONFIG_KEY")
	if passphrase == "" {
		return fmt.Errorf("SLIDECOFFEE_CONFIG_KEY must be set")
	}

	var value string
	if len(args) > 0 {
		value = args[0]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read value: %w", err)
		}
		value = strings.TrimRight(line, "\r\n")
	}
	if value == "" {
		return fmt.Errorf("nothing to encrypt")
	}

	enc, err := config.EncryptValue(value, passphrase)
	if err != nil {
		return err
	}
	fmt.Println("enc:" + enc)
	return nil
}
