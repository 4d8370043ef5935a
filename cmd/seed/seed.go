package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shinyyama/community-reward-bot/internal/model"
	"github.com/shinyyama/community-reward-bot/internal/repository"
	"github.com/shinyyama/community-reward-bot/internal/snowid"
	"gopkg.in/yaml.v3"
)

type seedRole struct {
	DiscordRoleID string  `yaml:"discord_role_id"`
	Name          string  `yaml:"name"`
	Description   *string `yaml:"description"`
}

type seedLevel struct {
	Number         int    `yaml:"number"`
	Name           string `yaml:"name"`
	RequiredReward int64  `yaml:"required_reward"`
	RoleID         string `yaml:"role_id"`
}

type seedChannel struct {
	ChannelID string `yaml:"channel_id"`
	Name      string `yaml:"name"`
	Message   int64  `yaml:"message"`
	Comment   int64  `yaml:"comment"`
	ForumPost int64  `yaml:"forum_post"`
	Active    *bool  `yaml:"active"`
}

type seedFile struct {
	Roles    []seedRole    `yaml:"roles"`
	Levels   []seedLevel   `yaml:"levels"`
	Channels []seedChannel `yaml:"channels"`
}

type seedCounts struct {
	roles, levels, channels int
}

func loadSeedFile(path string) (*seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return parseSeed(raw)
}

func parseSeed(raw []byte) (*seedFile, error) {
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *seedFile) validate() error {
	roles := map[string]bool{}
	for _, r := range f.Roles {
		if !snowid.Valid(r.DiscordRoleID) || r.Name == "" {
			return fmt.Errorf("role %q: discord_role_id and name are required", r.DiscordRoleID)
		}
		roles[r.DiscordRoleID] = true
	}
	seen := map[int]bool{}
	for _, l := range f.Levels {
		if l.Number < 1 || l.Name == "" || l.RequiredReward < 0 {
			return fmt.Errorf("level %d: number >= 1, name and non-negative required_reward are required", l.Number)
		}
		if seen[l.Number] {
			return fmt.Errorf("level %d: duplicate number", l.Number)
		}
		seen[l.Number] = true
		if l.RoleID != "" && !roles[l.RoleID] {
			return fmt.Errorf("level %d: role %s is not declared under roles", l.Number, l.RoleID)
		}
	}
	for _, c := range f.Channels {
		if !snowid.Valid(c.ChannelID) {
			return fmt.Errorf("channel %q: invalid channel_id", c.ChannelID)
		}
		if c.Message < 0 || c.Comment < 0 || c.ForumPost < 0 {
			return fmt.Errorf("channel %s: amounts must not be negative", c.ChannelID)
		}
	}
	return nil
}

// apply upserts roles first so levels can point at them. Running it twice
// leaves the same rows.
func apply(ctx context.Context, levels repository.LevelRepository, rewards repository.RewardRepository, f *seedFile) (seedCounts, error) {
	var n seedCounts
	roleIDs := map[string]uint64{}
	for _, r := range f.Roles {
		role, err := levels.UpsertRole(ctx, &model.Role{DiscordRoleID: r.DiscordRoleID, RoleName: r.Name, Description: r.Description})
		if err != nil {
			return n, fmt.Errorf("upsert role %s: %w", r.DiscordRoleID, err)
		}
		roleIDs[r.DiscordRoleID] = role.ID
		n.roles++
	}
	for _, l := range f.Levels {
		lv := &model.Level{LevelNumber: l.Number, LevelName: l.Name, RequiredRewardAmount: l.RequiredReward}
		if id, ok := roleIDs[l.RoleID]; ok {
			lv.RoleID = &id
		}
		if err := levels.UpsertLevel(ctx, lv); err != nil {
			return n, fmt.Errorf("upsert level %d: %w", l.Number, err)
		}
		n.levels++
	}
	for _, c := range f.Channels {
		active := true
		if c.Active != nil {
			active = *c.Active
		}
		ch := &model.RewardableChannel{
			ChannelID:             c.ChannelID,
			ChannelName:           c.Name,
			MessageRewardAmount:   c.Message,
			CommentRewardAmount:   c.Comment,
			ForumPostRewardAmount: c.ForumPost,
			IsActive:              active,
		}
		if err := rewards.UpsertRewardableChannel(ctx, ch); err != nil {
			return n, fmt.Errorf("upsert channel %s: %w", c.ChannelID, err)
		}
		n.channels++
	}
	return n, nil
}
