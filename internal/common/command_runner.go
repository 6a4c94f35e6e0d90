package common

import (
	"context"
	"fmt"

	"resumematch/internal/errors"
)

// CreateInputFunc builds the operation input from the file contents, in argument order
type CreateInputFunc[Input any] func(contents []string) (Input, error)

// OperationFunc runs the command's operation
type OperationFunc[Input, Output any] func(context.Context, Input) (Output, error)

// RunFileCommand reads the argument files, runs op on the input built from
// them and writes the formatted result.
func RunFileCommand[Input, Output any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	args []string,
	createInput CreateInputFunc[Input],
	op OperationFunc[Input, Output],
	output *OutputHandler,
) error {
	fileProcessor := NewFileProcessor(logger, cmdConfig.MaxFileSize)
	if output == nil {
		output = NewOutputHandler(logger)
	}

	// fail before the operation if the output can't be written
	if err := fileProcessor.ValidateOutputFile(cmdConfig.OutputFile); err != nil {
		return err
	}

	contents, err := fileProcessor.ValidateAndReadFiles(args...)
	if err != nil {
		return err
	}

	input, err := createInput(contents)
	if err != nil {
		return fmt.Errorf("failed to create input from file contents: %w", err)
	}

	result, err := op(ctx, input)
	if err != nil {
		return err
	}

	return output.HandleOutput(result, cmdConfig)
}
