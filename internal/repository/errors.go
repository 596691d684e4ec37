package repository

import "errors"

var ErrNotFound = errors.New("документ не найден")
var ErrEmptyAccount = errors.New("не указан аккаунт")
