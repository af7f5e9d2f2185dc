package main

import (
	"github.com/spf13/cobra"

	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
)

type memberJSON struct {
	Identity string `json:"identity"`
	Schedule string `json:"schedule"`
}

func (a *app) memberCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage group members",
	}

	var certPath string
	add := &cobra.Command{
		Use:   "add SCHEDULE",
		Short: "Add the owner of a certificate to a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cert, err := readPacket(certPath)
			if err != nil {
				return err
			}
			gm, err := a.groupManager(cmd.Context())
			if err != nil {
				return err
			}
			return gm.AddMember(cmd.Context(), args[0], cert)
		},
	}
	add.Flags().StringVar(&certPath, "cert", "", "certificate Data wire file")
	_ = add.MarkFlagRequired("cert")

	list := &cobra.Command{
		Use:   "list",
		Short: "List members and their schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gm, err := a.groupManager(cmd.Context())
			if err != nil {
				return err
			}
			identities, err := gm.ListMembers(cmd.Context())
			if err != nil {
				return err
			}
			out := make([]memberJSON, 0, len(identities))
			for _, identity := range identities {
				scheduleName, err := gm.GetMemberSchedule(cmd.Context(), identity)
				if err != nil {
					return err
				}
				out = append(out, memberJSON{Identity: identity.String(), Schedule: scheduleName})
			}
			return a.printJSON(out)
		},
	}

	move := &cobra.Command{
		Use:   "move IDENTITY SCHEDULE",
		Short: "Move a member to another schedule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := ndn.ParseName(args[0])
			if err != nil {
				return err
			}
			gm, err := a.groupManager(cmd.Context())
			if err != nil {
				return err
			}
			return gm.UpdateMemberSchedule(cmd.Context(), identity, args[1])
		},
	}

	remove := &cobra.Command{
		Use:   "remove IDENTITY",
		Short: "Remove a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := ndn.ParseName(args[0])
			if err != nil {
				return err
			}
			gm, err := a.groupManager(cmd.Context())
			if err != nil {
				return err
			}
			return gm.RemoveMember(cmd.Context(), identity)
		},
	}

	cmd.AddCommand(add, list, move, remove)
	return cmd
}
