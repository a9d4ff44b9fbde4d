package main

import (
	"fmt"
	"io"

	"github.com/gavinwade12/canLogger/monitor"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const rulesSettingName = "rules"

var ruleName string
var ruleTriggerID string
var ruleTriggerData string
var ruleActionID string
var ruleActionData string
var ruleDisabled bool

func init() {
	addRuleCmd.Flags().StringVar(&ruleName, "name", "", "name of the rule")
	addRuleCmd.Flags().StringVar(&ruleTriggerID, "trigger-id", "", "id of the frames that fire the rule")
	addRuleCmd.Flags().StringVar(&ruleTriggerData, "trigger-data", "", "data the frame must contain, as spaced hex bytes. Empty matches any data")
	addRuleCmd.Flags().StringVar(&ruleActionID, "action-id", "", "id of the frame sent when the rule fires")
	addRuleCmd.Flags().StringVar(&ruleActionData, "action-data", "", "data of the frame sent when the rule fires")
	addRuleCmd.Flags().BoolVar(&ruleDisabled, "disabled", false, "add the rule without enabling it")

	rulesCmd.AddCommand(addRuleCmd)
	rulesCmd.AddCommand(listRulesCmd)
	rootCmd.AddCommand(rulesCmd)
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage the rules that answer frames seen on the bus",
}

func configuredRules() ([]monitor.Rule, error) {
	var rules []monitor.Rule
	if err := viper.UnmarshalKey(rulesSettingName, &rules); err != nil {
		return nil, errors.Wrap(err, "getting configured rules")
	}
	return rules, nil
}

var addRuleCmd = &cobra.Command{
	Use:          "add",
	Short:        "Adds a rule to the config",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ruleTriggerID == "" {
			return errors.New("no trigger-id set")
		}
		if ruleActionID == "" {
			return errors.New("no action-id set")
		}

		rules, err := configuredRules()
		if err != nil {
			return err
		}

		r := monitor.Rule{
			Name:        ruleName,
			Enabled:     !ruleDisabled,
			TriggerID:   ruleTriggerID,
			TriggerData: ruleTriggerData,
			ActionID:    ruleActionID,
			ActionData:  ruleActionData,
		}
		if err := r.Normalize(); err != nil {
			return err
		}
		rules = append(rules, r)

		viper.Set(rulesSettingName, rules)
		if err := viper.WriteConfig(); err != nil {
			return errors.Wrap(err, "writing config")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added rule %s: %s -> %s\n", r.ID, r.TriggerID, r.ActionLine())
		return nil
	},
}

var listRulesCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := configuredRules()
		if err != nil {
			return err
		}
		listRules(cmd.OutOrStdout(), rules)
		return nil
	},
}

func listRules(w io.Writer, rules []monitor.Rule) {
	for i, r := range rules {
		trigger := r.TriggerData
		if trigger == "" {
			trigger = "*"
		}
		fmt.Fprintf(w, "[%d]:\tName: %s\n\tEnabled: %v\n\tTrigger: %s %s\n\tAction: %s\n",
			i, r.Name, r.Enabled, r.TriggerID, trigger, r.ActionLine())
	}
}
