////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package cmd initializes the CLI and config parsers as well as the logger.
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/chatbridge/client/chat"
	"gitlab.com/chatbridge/client/gemini"
	"gitlab.com/chatbridge/client/storage"
)

// Flag names, shared between registration and lookup.
const (
	logLevelFlag   = "logLevel"
	logPathFlag    = "log"
	apiKeyFlag     = "apiKey"
	targetFlag     = "target"
	sessionFlag    = "session"
	passwordFlag   = "password"
	noAutoPlayFlag = "noAutoPlay"
)

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to
// happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// rootCmd runs an interactive guest translation session on the console.
// Each line typed is detected, translated, and echoed back as the
// original/translation pair the engine committed.
var rootCmd = &cobra.Command{
	Use:   "chatbridge",
	Short: "Runs a bilingual translation chat session on the console",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		initLog(viper.GetUint(logLevelFlag), viper.GetString(logPathFlag))

		apiKey := viper.GetString(apiKeyFlag)
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			jww.FATAL.Panicf("No API key; pass --%s or set GEMINI_API_KEY",
				apiKeyFlag)
		}

		var local *storage.Local
		if dir := viper.GetString(sessionFlag); dir != "" {
			var err error
			local, err = storage.New(dir, viper.GetString(passwordFlag))
			if err != nil {
				jww.FATAL.Panicf("Could not open session storage: %+v", err)
			}
		}

		backend := gemini.New(apiKey)
		m := chat.NewManager(chat.Params{
			Translator:  backend,
			Synthesizer: backend,
			Sink:        silentSink{},
			Local:       local,
			Callbacks:   &consoleUI{},
		})

		if target := viper.GetString(targetFlag); target != "" {
			m.SetGuestTarget(target)
		}
		if viper.GetBool(noAutoPlayFlag) {
			s := m.Settings()
			s.AutoPlay = false
			if err := m.SaveSettings(s); err != nil {
				jww.WARN.Printf("Could not save settings: %+v", err)
			}
		}

		fmt.Printf("Translating to %q. Type a line to translate; "+
			"Ctrl-D exits.\n", m.GuestTarget())

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if err := m.SendText(line); err != nil {
				jww.ERROR.Printf("Send failed: %+v", err)
			}
		}
		if err := scanner.Err(); err != nil {
			jww.ERROR.Printf("Input error: %+v", err)
		}
	},
}

// consoleUI prints engine updates to the terminal.
type consoleUI struct{}

func (*consoleUI) MessageListUpdate(msgs []chat.Message) {
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	tag := "translation"
	if last.IsOriginal {
		tag = "original"
	}
	fmt.Printf("  [%s/%s] %s\n", last.Language, tag, last.Text)
}

func (*consoleUI) UnreadUpdate(bool)                    {}
func (*consoleUI) PlaybackUpdate(string)                {}
func (*consoleUI) ContactListUpdate([]chat.UserProfile) {}
func (*consoleUI) RoomListUpdate([]chat.Room)           {}
func (*consoleUI) InvitationUpdate([]chat.Invitation)   {}
func (*consoleUI) ConversationEnded(key string, err error) {
	fmt.Printf("  conversation %s ended: %s\n", key, err)
}
func (*consoleUI) ErrorReport(op string, err error) {
	fmt.Printf("  %s failed: %s\n", op, err)
}
func (*consoleUI) Toast(title, body string) {
	fmt.Printf("  %s: %s\n", title, body)
}

// silentSink discards synthesized audio; the console has no playback path.
type silentSink struct{}

func (silentSink) Play(_ []byte, _ float64, onDone func()) (func(), error) {
	onDone()
	return func() {}, nil
}

// init registers the persistent flags and binds them into viper so values
// can also come from the environment or a config file.
func init() {
	flags := rootCmd.PersistentFlags()

	flags.UintP(logLevelFlag, "v", 0,
		"Verbosity: 0 info, 1 debug, >1 trace")
	flags.String(logPathFlag, "-", "Log output path; - for stdout")
	flags.String(apiKeyFlag, "", "Gemini API key")
	flags.StringP(targetFlag, "t", "",
		"Translation target language code (default fixed sr/tr pair)")
	flags.String(sessionFlag, "",
		"Directory for encrypted local session storage")
	flags.StringP(passwordFlag, "p", "", "Session storage password")
	flags.Bool(noAutoPlayFlag, false, "Disable speech auto-playback")

	for _, key := range []string{logLevelFlag, logPathFlag, apiKeyFlag,
		targetFlag, sessionFlag, passwordFlag, noAutoPlayFlag} {
		if err := viper.BindPFlag(key, flags.Lookup(key)); err != nil {
			jww.ERROR.Printf("viper.BindPFlag failed for %q: %+v", key, err)
		}
	}
}
