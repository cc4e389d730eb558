package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "migrate", "seed-admin"}, names)
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("http-addr"))
}

func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(int) ([]byte, error) {
		if len(answers) == 0 {
			return nil, errors.New("no input")
		}
		a := answers[0]
		answers = answers[1:]
		return []byte(a), nil
	}
}

func TestPromptPassword(t *testing.T) {
	var out bytes.Buffer

	stubPasswords(t, "Adm1n!Passw0rd", "Adm1n!Passw0rd")
	pw, err := promptPassword(&out, 0)
	require.NoError(t, err)
	assert.Equal(t, "Adm1n!Passw0rd", pw)
	assert.Contains(t, out.String(), "Admin password: ")

	stubPasswords(t, "one", "two")
	_, err = promptPassword(&out, 0)
	assert.EqualError(t, err, "passwords do not match")

	stubPasswords(t)
	_, err = promptPassword(&out, 0)
	assert.Error(t, err)
}
