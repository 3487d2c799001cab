package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	inodefs "github.com/inodefs/go-inodefs"
	"github.com/inodefs/go-inodefs/device"
	"github.com/inodefs/go-inodefs/filesystem/indexfs"
)

func mkfsCmd() *cobra.Command {
	var size int64
	var label string
	cmd := &cobra.Command{
		Use:   "mkfs <image>",
		Short: "create an image file holding an empty indexfs volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			fs, err := inodefs.Create(args[0], size, &indexfs.Params{Label: label})
			if err != nil {
				return err
			}
			defer fs.Close()
			fmt.Printf("created %s: %d sectors, uuid %s\n", args[0], fs.SectorCount(), fs.UUID())
			return nil
		},
	}
	cmd.Flags().Int64Var(&size, "size", 8*1024*1024, "volume size in bytes")
	cmd.Flags().StringVar(&label, "label", "", "volume label")
	return cmd
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <image>",
		Short: "print volume identity and free space",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			fs, err := inodefs.Open(args[0], true)
			if err != nil {
				return err
			}
			defer fs.Close()
			fmt.Printf("label:        %s\n", fs.Label())
			fmt.Printf("uuid:         %s\n", fs.UUID())
			fmt.Printf("sectors:      %d\n", fs.SectorCount())
			fmt.Printf("free sectors: %d\n", fs.FreeSectorCount())
			return nil
		},
	}
}

func putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <image> <hostfile>",
		Short: "copy a host file into a new inode and print its sector number",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			src, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer src.Close()

			fs, err := inodefs.Open(args[0], false)
			if err != nil {
				return err
			}
			defer fs.Close()

			home, err := fs.AllocateSector()
			if err != nil {
				return err
			}
			if err := fs.CreateInode(home, 0, false); err != nil {
				// the home sector never held a valid record, hand it back
				if relErr := fs.ReleaseSector(home); relErr != nil {
					log.WithError(relErr).Warn("could not release home sector")
				}
				return err
			}

			f, err := fs.OpenFile(home, os.O_RDWR)
			if err != nil {
				return err
			}
			defer f.Close()
			n, err := io.Copy(f, src)
			if err != nil {
				return fmt.Errorf("copied %d bytes: %w", n, err)
			}
			fmt.Printf("%d\n", home)
			return nil
		},
	}
}

func catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <image> <sector>",
		Short: "stream an inode's contents to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			home, err := parseSector(args[1])
			if err != nil {
				return err
			}
			fs, err := inodefs.Open(args[0], true)
			if err != nil {
				return err
			}
			defer fs.Close()

			f, err := fs.OpenFile(home, os.O_RDONLY)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(os.Stdout, f)
			return err
		},
	}
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <image> <sector>",
		Short: "remove an inode and free its storage",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			home, err := parseSector(args[1])
			if err != nil {
				return err
			}
			fs, err := inodefs.Open(args[0], false)
			if err != nil {
				return err
			}
			defer fs.Close()

			in, err := fs.OpenInode(home)
			if err != nil {
				return err
			}
			in.Remove()
			return in.Close()
		},
	}
}

func parseSector(s string) (device.SectorNum, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid inode sector number %q", s)
	}
	return device.SectorNum(n), nil
}
