package main

import (
	"context"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/named-data/ndn-cpp-sub006/internal/groupmanager"
	"github.com/named-data/ndn-cpp-sub006/internal/schedule"
)

type intervalJSON struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	StartHour int    `json:"startHour"`
	EndHour   int    `json:"endHour"`
	NRepeats  int    `json:"nRepeats"`
	Unit      string `json:"unit"`
}

type scheduleJSON struct {
	White []intervalJSON `json:"white"`
	Black []intervalJSON `json:"black"`
}

func (i intervalJSON) toInterval() (schedule.RepetitiveInterval, error) {
	start, err := schedule.FromIsoString(i.StartDate)
	if err != nil {
		return schedule.RepetitiveInterval{}, err
	}
	end, err := schedule.FromIsoString(i.EndDate)
	if err != nil {
		return schedule.RepetitiveInterval{}, err
	}
	unit := schedule.RepeatNone
	if i.Unit != "" {
		if unit, err = schedule.ParseRepeatUnit(i.Unit); err != nil {
			return schedule.RepetitiveInterval{}, err
		}
	}
	return schedule.NewRepetitiveInterval(start, end, i.StartHour, i.EndHour, i.NRepeats, unit)
}

func (s scheduleJSON) toSchedule() (*schedule.Schedule, error) {
	out := schedule.New()
	for n, i := range s.White {
		r, err := i.toInterval()
		if err != nil {
			return nil, fmt.Errorf("white[%d]: %w", n, err)
		}
		out.AddWhiteInterval(r)
	}
	for n, i := range s.Black {
		r, err := i.toInterval()
		if err != nil {
			return nil, fmt.Errorf("black[%d]: %w", n, err)
		}
		out.AddBlackInterval(r)
	}
	return out, nil
}

func toIntervalJSON(set []schedule.RepetitiveInterval) []intervalJSON {
	out := make([]intervalJSON, 0, len(set))
	for _, r := range set {
		out = append(out, intervalJSON{
			StartDate: schedule.ToIsoString(r.StartDate()),
			EndDate:   schedule.ToIsoString(r.EndDate()),
			StartHour: r.StartHour(),
			EndHour:   r.EndHour(),
			NRepeats:  r.NRepeats(),
			Unit:      r.Unit().String(),
		})
	}
	return out
}

func toScheduleJSON(s *schedule.Schedule) scheduleJSON {
	return scheduleJSON{White: toIntervalJSON(s.WhiteIntervals()), Black: toIntervalJSON(s.BlackIntervals())}
}

// readSchedule decodes a JSON schedule from path, or stdin for "-".
func readSchedule(path string, stdin io.Reader) (*schedule.Schedule, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var doc scheduleJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse schedule %s: %w", path, err)
	}
	return doc.toSchedule()
}

func (a *app) scheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage access schedules",
	}

	var file string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a schedule from a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := readSchedule(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			gm, err := a.groupManager(cmd.Context())
			if err != nil {
				return err
			}
			return gm.AddSchedule(cmd.Context(), args[0], s)
		},
	}
	add.Flags().StringVarP(&file, "file", "f", "-", "JSON schedule file, - for stdin")

	var updateFile string
	update := &cobra.Command{
		Use:   "update NAME",
		Short: "Replace or create a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := readSchedule(updateFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			gm, err := a.groupManager(cmd.Context())
			if err != nil {
				return err
			}
			return gm.UpdateSchedule(cmd.Context(), args[0], s)
		},
	}
	update.Flags().StringVarP(&updateFile, "file", "f", "-", "JSON schedule file, - for stdin")

	show := &cobra.Command{
		Use:   "show NAME",
		Short: "Print a schedule as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gm, err := a.groupManager(cmd.Context())
			if err != nil {
				return err
			}
			s, err := gm.GetSchedule(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJSON(toScheduleJSON(s))
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List schedule names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gm, err := a.groupManager(cmd.Context())
			if err != nil {
				return err
			}
			scheduleNames, err := gm.ListScheduleNames(cmd.Context())
			if err != nil {
				return err
			}
			if scheduleNames == nil {
				scheduleNames = []string{}
			}
			return a.printJSON(scheduleNames)
		},
	}

	rename := &cobra.Command{
		Use:   "rename OLD NEW",
		Short: "Rename a schedule, keeping its members",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gm, err := a.groupManager(cmd.Context())
			if err != nil {
				return err
			}
			return gm.RenameSchedule(cmd.Context(), args[0], args[1])
		},
	}

	remove := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a schedule and its members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gm, err := a.groupManager(cmd.Context())
			if err != nil {
				return err
			}
			return gm.DeleteSchedule(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(add, update, show, list, rename, remove)
	return cmd
}

// groupManager wires a GroupManager over the configured store and signing
// key.
func (a *app) groupManager(ctx context.Context) (*groupmanager.GroupManager, error) {
	prefix, dataType, err := a.cfg.Group.Names()
	if err != nil {
		return nil, err
	}
	db, err := a.groupDb(ctx)
	if err != nil {
		return nil, err
	}
	kc, certName, err := a.signer(prefix.AppendString("manager").String())
	if err != nil {
		return nil, err
	}
	return groupmanager.New(prefix, dataType, db, kc, certName,
		groupmanager.WithKeySize(a.cfg.Group.KeySize),
		groupmanager.WithFreshness(a.cfg.Group.Freshness),
		groupmanager.WithLogger(a.logger),
		groupmanager.WithMetrics(a.recorder),
	), nil
}
