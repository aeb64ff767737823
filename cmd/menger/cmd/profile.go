package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect and rebuild the materialized-view profile cache",
}

var profileSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Rebuild each space's hot set of materialized profiles",
	Long: `Sync rebuilds every space's hot set of materialized profiles from its
recorded query-signature hit counts (§4.4 "register"): the hottest
signatures, up to the configured cache-ratio budget, are (re)materialized
into ghost fact tables that a later "dice" can read from directly instead
of scanning the full-depth fact table. Buffered hit counters are then
flushed.`,
	RunE: runProfileSync,
}

func init() {
	profileCmd.AddCommand(profileSyncCmd)
	rootCmd.AddCommand(profileCmd)
}

func runProfileSync(cmd *cobra.Command, args []string) error {
	sess, cleanup, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	for name, sp := range sess.spaces {
		if err := sess.profiles.Register(sp, sess.dims, true); err != nil {
			return fmt.Errorf("profile sync %s: %w", name, err)
		}
		cmd.Printf("%s: profiles rebuilt\n", name)
	}
	return sess.profiles.Sync()
}
