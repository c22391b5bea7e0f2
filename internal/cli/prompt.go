package cli

import (
	"context"
	"errors"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// ErrAborted is returned when the user declines or interrupts a prompt.
var ErrAborted = errors.New("cli: aborted")

// Confirmer asks yes/no questions. Tests replace the survey implementation.
type Confirmer interface {
	Confirm(ctx context.Context, message, help string) (bool, error)
}

type surveyConfirmer struct{}

func (surveyConfirmer) Confirm(ctx context.Context, message, help string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var out bool
	prompt := &survey.Confirm{
		Message: message,
		Help:    help,
	}
	if err := survey.AskOne(prompt, &out); err != nil {
		return false, translateSurveyErr(err)
	}
	return out, nil
}

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrAborted
	}
	return err
}
