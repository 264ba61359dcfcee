package cmd

import (
	"errors"

	"github.com/manifoldco/promptui"
	"github.com/spf13/pflag"
)

const AutoConfirmFlagName = "yes"

func AssignAutoConfirmFlag(flags *pflag.FlagSet) {
	flags.BoolP(AutoConfirmFlagName, "y", false, "Automatically say yes to all confirmations")
}

// Confirm asks question unless the auto confirm flag is set.  A refusal is not an error.
func Confirm(flags *pflag.FlagSet, question string) (bool, error) {
	if yes, err := flags.GetBool(AutoConfirmFlagName); err == nil && yes {
		return true, nil
	}
	prm := promptui.Prompt{
		Label:     question,
		IsConfirm: true,
	}
	_, err := prm.Run()
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
