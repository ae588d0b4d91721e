package cmds

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/term"

	"github.com/ipfs-force-community/sophon-waveportal/wallet"
)

// PassphrasePrompt unlocks keystore accounts with the content of file, or asks on the
// terminal when file is empty. An empty answer declines the request.
func PassphrasePrompt(file string) wallet.PassphrasePrompt {
	if file != "" {
		return func(ctx context.Context, account common.Address) (string, bool, error) {
			data, err := os.ReadFile(file)
			if err != nil {
				return "", false, err
			}
			passphrase := strings.TrimRight(string(data), "\r\n")
			return passphrase, passphrase != "", nil
		}
	}

	return func(ctx context.Context, account common.Address) (string, bool, error) {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return "", false, fmt.Errorf("no terminal to unlock %s", account.Hex())
		}
		fmt.Printf("Passphrase for %s (empty to decline): ", account.Hex())
		pw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", false, err
		}
		return string(pw), len(pw) > 0, nil
	}
}
