package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"remoteup/protocols"
)

func newUploadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <remote> <local-path> <remote-path>",
		Short: "Upload a local file or directory tree",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRemote(cmd.Context(), args[0], func(r protocols.Remote) error {
				if err := r.UploadFile(args[1], args[2]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s to %s\n", args[1], r.CreatePath(args[2]))
				return nil
			})
		},
	}
}

func newMkdirCmd(opts *rootOptions) *cobra.Command {
	var parents bool
	cmd := &cobra.Command{
		Use:   "mkdir <remote> <path>",
		Short: "Create a remote directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRemote(cmd.Context(), args[0], func(r protocols.Remote) error {
				return r.CreateDir(args[1], parents)
			})
		},
	}
	cmd.Flags().BoolVarP(&parents, "parents", "p", true, "Create missing parent directories")
	return cmd
}

func newPutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <remote> <path> <content>",
		Short: "Create or overwrite a remote file with the given content",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRemote(cmd.Context(), args[0], func(r protocols.Remote) error {
				return r.CreateFile(args[1], args[2])
			})
		},
	}
}

func newStatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <remote> <path>",
		Short: "Show whether a remote path is a file or a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRemote(cmd.Context(), args[0], func(r protocols.Remote) error {
				st, err := r.Stat(args[1])
				if err != nil {
					return err
				}
				if st == nil {
					return errors.Errorf("%s: no such file or directory", r.CreatePath(args[1]))
				}
				kind := "file"
				if st.IsDir {
					kind = "directory"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", st.Name, kind)
				return nil
			})
		},
	}
}

func newRmCmd(opts *rootOptions) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "rm <remote> <path>",
		Short: "Delete a remote file, or a directory with -r (failures are reported, never fatal)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRemote(cmd.Context(), args[0], func(r protocols.Remote) error {
				res := r.Delete(args[1], recursive)
				if res.Failed() {
					fmt.Fprintf(cmd.ErrOrStderr(), "not removed: %s: %v\n", res.Path, res.Err)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Remove a directory and its contents")
	return cmd
}
