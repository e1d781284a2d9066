package webhook

type IService interface {
	Post(payload interface{}) error
}
