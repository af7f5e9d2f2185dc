package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/named-data/ndn-cpp-sub006/internal/encryption"
	"github.com/named-data/ndn-cpp-sub006/internal/face"
	"github.com/named-data/ndn-cpp-sub006/internal/keycache"
	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
	"github.com/named-data/ndn-cpp-sub006/internal/producer"
	"github.com/named-data/ndn-cpp-sub006/internal/schedule"
)

type intervalResultJSON struct {
	Start    string   `json:"start,omitempty"`
	End      string   `json:"end,omitempty"`
	Positive bool     `json:"positive"`
	Members  []string `json:"members"`
}

func (a *app) intervalCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "interval TIME",
		Short: "Show the group key window and members at an ISO time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := schedule.FromIsoString(args[0])
			if err != nil {
				return err
			}
			gm, err := a.groupManager(cmd.Context())
			if err != nil {
				return err
			}
			interval, members, err := gm.CalculateInterval(cmd.Context(), t)
			if err != nil {
				return err
			}

			out := intervalResultJSON{Positive: !interval.IsEmpty(), Members: make([]string, 0, len(members))}
			if out.Positive {
				out.Start = schedule.ToIsoString(interval.StartTime())
				out.End = schedule.ToIsoString(interval.EndTime())
			}
			for keyName := range members {
				out.Members = append(out.Members, keyName)
			}
			sort.Strings(out.Members)
			return a.printJSON(out)
		},
	}
}

type packetsJSON struct {
	Names []string `json:"names"`
	Files []string `json:"files"`
}

func (a *app) groupKeyCommand() *cobra.Command {
	var (
		outDir     string
		regenerate bool
	)
	cmd := &cobra.Command{
		Use:   "group-key TIME",
		Short: "Write the E-Key and member D-Keys for an ISO time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := schedule.FromIsoString(args[0])
			if err != nil {
				return err
			}
			gm, err := a.groupManager(cmd.Context())
			if err != nil {
				return err
			}
			packets, err := gm.GetGroupKey(cmd.Context(), t, regenerate)
			if err != nil {
				return err
			}
			files, err := writePackets(outDir, packets)
			if err != nil {
				return err
			}
			return a.printJSON(packetsJSON{Names: names(packets), Files: files})
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "keys", "directory receiving the Data wire files")
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "replace a stored key pair for the window")
	return cmd
}

type produceJSON struct {
	ContentKey  string   `json:"contentKey"`
	WrappedKeys []string `json:"wrappedKeys"`
	Content     string   `json:"content"`
	Errors      []string `json:"errors"`
	Files       []string `json:"files"`
}

func (a *app) produceCommand() *cobra.Command {
	var (
		keysDir string
		inPath  string
		outDir  string
		isoTime string
	)
	cmd := &cobra.Command{
		Use:   "produce",
		Short: "Encrypt a file for the configured data type",
		Long: "Loads E-Key packets from --keys, creates or reuses the content key of the time slot, " +
			"wraps it for every access domain found and encrypts --in. All packets go to --out.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			t, err := schedule.FromIsoString(isoTime)
			if err != nil {
				return err
			}
			plaintext, err := os.ReadFile(inPath)
			if err != nil {
				return err
			}
			prefix, dataType, err := a.cfg.Group.Names()
			if err != nil {
				return err
			}
			packets, err := readPackets(keysDir)
			if err != nil {
				return err
			}
			db, err := a.producerDb(ctx)
			if err != nil {
				return err
			}
			kc, certName, err := a.signer(prefix.AppendString("producer").String())
			if err != nil {
				return err
			}

			hints := make([]ndn.Name, 0, len(a.cfg.Producer.ForwardingHints))
			for _, hint := range a.cfg.Producer.ForwardingHints {
				name, err := ndn.ParseName(hint)
				if err != nil {
					return fmt.Errorf("forwarding hint: %w", err)
				}
				hints = append(hints, name)
			}

			f := face.NewMemory(face.WithLogger(a.logger))
			defer f.Close()
			f.Put(packets...)

			cache := keycache.New(keycache.Config{SizeMB: a.cfg.Producer.CacheSizeMB, TTL: a.cfg.Producer.CacheTTL}, a.logger)
			p := producer.New(prefix, dataType, f, kc, certName, db,
				producer.WithRetries(a.cfg.Producer.Retries),
				producer.WithBucket(a.cfg.Producer.Bucket),
				producer.WithInterestLifetime(a.cfg.Producer.InterestLifetime),
				producer.WithForwardingHints(hints...),
				producer.WithCache(keycache.Instrument(cache, "content-key", a.recorder)),
				producer.WithMetrics(a.recorder),
				producer.WithLogger(a.logger),
			)

			out := produceJSON{WrappedKeys: []string{}, Errors: []string{}}
			var wrapped []*ndn.Data
			cKeyName, err := p.CreateContentKey(ctx, t,
				func(keys []*ndn.Data) { wrapped = keys },
				func(code encryption.ErrorCode, message string) {
					out.Errors = append(out.Errors, code.String()+": "+message)
				})
			if err != nil {
				return err
			}
			f.ProcessEvents()

			var content ndn.Data
			if err := p.Produce(ctx, &content, t, plaintext); err != nil {
				return err
			}

			written := append(append([]*ndn.Data(nil), wrapped...), &content)
			files, err := writePackets(outDir, written)
			if err != nil {
				return err
			}
			out.ContentKey = cKeyName.String()
			out.WrappedKeys = append(out.WrappedKeys, names(wrapped)...)
			out.Content = content.Name.String()
			out.Files = files
			return a.printJSON(out)
		},
	}
	cmd.Flags().StringVar(&keysDir, "keys", "keys", "directory of E-Key Data wire files")
	cmd.Flags().StringVar(&inPath, "in", "", "plaintext file")
	cmd.Flags().StringVarP(&outDir, "out", "o", "out", "directory receiving the Data wire files")
	cmd.Flags().StringVar(&isoTime, "time", "", "production time, e.g. 20150825T063000")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}
