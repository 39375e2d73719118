// Command trustctl is a small operator CLI over the trustfield library: it
// exercises a field with scripted interactions, inspects the min-cut
// boundary of reported contexts, and reads/writes snapshots. It sits
// entirely outside the library's public surface — the core packages have
// no knowledge that a CLI exists.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/trustfield/internal/boundary"
	"github.com/danielpatrickdp/trustfield/internal/config"
	"github.com/danielpatrickdp/trustfield/internal/contextkey"
	"github.com/danielpatrickdp/trustfield/internal/feature"
	"github.com/danielpatrickdp/trustfield/internal/field"
	"github.com/danielpatrickdp/trustfield/internal/mixing"
	"github.com/danielpatrickdp/trustfield/internal/persist"
	"github.com/danielpatrickdp/trustfield/internal/personality"
	"github.com/danielpatrickdp/trustfield/internal/snapshot"
	"github.com/danielpatrickdp/trustfield/internal/telemetry"
)

// #region main

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "trustctl",
		Short: "Operator CLI for the trustfield coherence library",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a trustfield.yaml config file")

	root.AddCommand(simulateCmd())
	root.AddCommand(snapshotCmd())
	root.AddCommand(boundaryCmd())
	root.AddCommand(mixCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// #endregion main

// #region simulate

func simulateCmd() *cobra.Command {
	var featureCSV string
	var positives, negatives int
	var dbPath string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Apply a scripted sequence of interactions to one context and print the resulting trust state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			curiosity, startle, recovery := cfg.Personality.Values()
			p := personality.NewWith(curiosity, startle, recovery)

			vals, err := parseFloatCSV(featureCSV)
			if err != nil {
				return fmt.Errorf("parse --feature: %w", err)
			}
			k := contextkey.New(feature.New(vals))

			f := field.New(cfg.Capacity)
			f.SetObserver(telemetry.DefaultObserver())

			tick := uint64(0)
			for i := 0; i < positives; i++ {
				f.PositiveInteraction(k, p, tick, false)
				tick++
			}
			for i := 0; i < negatives; i++ {
				f.NegativeInteraction(k, p, tick)
				tick++
			}

			for _, e := range f.AllEntries() {
				if e.Key.Hash() != k.Hash() {
					continue
				}
				fmt.Printf("hash=%d coherence=%.4f floor=%.4f positive_count=%d last_tick=%d\n",
					e.Key.Hash(), e.Accumulator.Coherence, e.Accumulator.Floor, e.Accumulator.PositiveCount, e.Accumulator.LastTick)
			}

			if dbPath != "" {
				store, err := persist.NewSnapshotStore(dbPath)
				if err != nil {
					return fmt.Errorf("open snapshot store: %w", err)
				}
				defer store.Close()
				snap := snapshot.FromField(f, p, tick, tick, uint64(positives+negatives), "")
				if err := store.Put(snap); err != nil {
					return fmt.Errorf("save snapshot: %w", err)
				}
				fmt.Printf("saved snapshot %s\n", snap.SnapshotID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&featureCSV, "feature", "1,1", "comma-separated feature vector components in [0,1]")
	cmd.Flags().IntVar(&positives, "positives", 10, "number of positive interactions to apply")
	cmd.Flags().IntVar(&negatives, "negatives", 0, "number of negative interactions to apply, after the positives")
	cmd.Flags().StringVar(&dbPath, "save-to", "", "optional SQLite path to persist the resulting field as a snapshot")
	return cmd
}

// #endregion simulate

// #region snapshot

func snapshotCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Show the active persisted snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return fmt.Errorf("--db is required")
			}
			store, err := persist.NewSnapshotStore(dbPath)
			if err != nil {
				return fmt.Errorf("open snapshot store: %w", err)
			}
			defer store.Close()

			snap, err := store.GetActive()
			if err != nil {
				return fmt.Errorf("read active snapshot: %w", err)
			}
			out, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite path holding persisted snapshots")
	return cmd
}

// #endregion snapshot

// #region boundary

func boundaryCmd() *cobra.Command {
	var contextsCSV string

	cmd := &cobra.Command{
		Use:   "boundary",
		Short: "Compute the min-cut boundary over a set of reported contexts",
		Long: "Each context is given as feature-components|coherence, contexts separated by ';'. " +
			"Example: --contexts \"0.9,0.1|0.8;0.1,0.9|0.8;0.5,0.5|0.1\"",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			b := boundary.New(cfg.Capacity)
			keys, err := loadContexts(b, contextsCSV)
			if err != nil {
				return err
			}

			part := b.Partition()
			obs := telemetry.DefaultObserver()
			obs.BoundaryRecomputed(part.CutValue, len(part.S), len(part.Complement))

			fmt.Printf("cut_value=%.4f\n", part.CutValue)
			fmt.Printf("S=%v\n", labelHashes(keys, part.HashesS))
			fmt.Printf("S_complement=%v\n", labelHashes(keys, part.HashesComplement))
			return nil
		},
	}
	cmd.Flags().StringVar(&contextsCSV, "contexts", "", "semicolon-separated feature-vector|coherence context list")
	return cmd
}

func loadContexts(b *boundary.MinCutBoundary, spec string) (map[uint64]int, error) {
	labels := map[uint64]int{}
	if spec == "" {
		return labels, fmt.Errorf("--contexts is required")
	}
	for i, part := range strings.Split(spec, ";") {
		pieces := strings.SplitN(part, "|", 2)
		if len(pieces) != 2 {
			return nil, fmt.Errorf("malformed context %q, expected feature-vector|coherence", part)
		}
		vals, err := parseFloatCSV(pieces[0])
		if err != nil {
			return nil, fmt.Errorf("context %d: %w", i, err)
		}
		coherenceVal, err := strconv.ParseFloat(strings.TrimSpace(pieces[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("context %d: bad coherence: %w", i, err)
		}
		k := contextkey.New(feature.New(vals))
		b.ReportContextWithKey(k, coherenceVal)
		labels[k.Hash()] = i
	}
	return labels, nil
}

// loadContextsForMixing parses the same feature-vector|coherence context
// list as loadContexts, but keeps insertion order and each context's raw
// coherence value, since mixing.HierarchicalMixer.Apply operates on an
// ordered coherence slice rather than a hash-keyed map.
func loadContextsForMixing(b *boundary.MinCutBoundary, spec string) ([]uint64, []float64, error) {
	if spec == "" {
		return nil, nil, fmt.Errorf("--contexts is required")
	}
	parts := strings.Split(spec, ";")
	hashes := make([]uint64, 0, len(parts))
	coherenceVals := make([]float64, 0, len(parts))
	for i, part := range parts {
		pieces := strings.SplitN(part, "|", 2)
		if len(pieces) != 2 {
			return nil, nil, fmt.Errorf("malformed context %q, expected feature-vector|coherence", part)
		}
		vals, err := parseFloatCSV(pieces[0])
		if err != nil {
			return nil, nil, fmt.Errorf("context %d: %w", i, err)
		}
		coherenceVal, err := strconv.ParseFloat(strings.TrimSpace(pieces[1]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("context %d: bad coherence: %w", i, err)
		}
		k := contextkey.New(feature.New(vals))
		b.ReportContextWithKey(k, coherenceVal)
		hashes = append(hashes, k.Hash())
		coherenceVals = append(coherenceVals, coherenceVal)
	}
	return hashes, coherenceVals, nil
}

func labelHashes(labels map[uint64]int, hashes []uint64) []int {
	out := make([]int, 0, len(hashes))
	for _, h := range hashes {
		out = append(out, labels[h])
	}
	return out
}

// #endregion boundary

// #region mix

func mixCmd() *cobra.Command {
	var contextsCSV string

	cmd := &cobra.Command{
		Use:   "mix",
		Short: "Split reported contexts into two clusters via min-cut, then apply hierarchical coherence mixing",
		Long: "Each context is given as feature-components|coherence, contexts separated by ';'. " +
			"The min-cut boundary supplies cluster membership for the mixer. " +
			"Example: --contexts \"0.9,0.1|0.8;0.1,0.9|0.8;0.5,0.5|0.1\"",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			b := boundary.New(cfg.Capacity)
			ordered, coherenceVals, err := loadContextsForMixing(b, contextsCSV)
			if err != nil {
				return err
			}
			counts := make([]uint64, len(ordered))
			for i := range counts {
				counts[i] = 1
			}

			part := b.Partition()

			m := mixing.NewHierarchicalMixer(mixing.DefaultConfig())
			m.UpdateClusters(mixing.AssignmentsFromPartition(ordered, part), 2)
			m.ReprojectAll()
			mixed := m.Apply(coherenceVals, counts)

			for i, h := range ordered {
				fmt.Printf("context=%d hash=%d cluster_side=%v mixed=%.4f\n", i, h, part.S[h], mixed[i])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&contextsCSV, "contexts", "", "semicolon-separated feature-vector|coherence context list")
	return cmd
}

// #endregion mix

// #region helpers

func parseFloatCSV(s string) ([]float64, error) {
	fields := strings.Split(s, ",")
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// #endregion helpers
