package handler

import (
	"typerace/internal/app/identity"
	"typerace/internal/app/race"
	"typerace/internal/app/texts"
	"typerace/internal/configs"
)

type AppDeps struct {
	Config   *configs.AppConfig
	Store    *race.Store
	Hub      *race.Hub
	Identity *identity.Service
	Texts    *texts.Provider
}
